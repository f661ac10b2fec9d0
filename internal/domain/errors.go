package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")

	// Explorador de valorización.
	ErrInvalidScope          = errors.New("filtro de valorización inválido")
	ErrInvalidClassification = errors.New("clasificación ABC inválida")
	ErrUnknownNodeKind       = errors.New("tipo de nodo desconocido")
	ErrNodeNotFound          = errors.New("nodo no encontrado en la caché")
	ErrLoadMoreRejected      = errors.New("no hay más páginas disponibles o ya hay una en curso")
	ErrFetchTimeout          = errors.New("tiempo de espera agotado consultando el servicio de reportes")
)
