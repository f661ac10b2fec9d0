// Package cache caché Redis versionada para las respuestas de la API de valorización.
// Invalidar es incrementar la versión global: las claves viejas dejan de leerse y
// expiran solas por TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const versionKey = "valuation:version"

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "valuation_api",
	Name:      "cache_lookups_total",
	Help:      "Lecturas de la caché de reportes por resultado (hit, miss, bypass).",
}, []string{"result"})

var writes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "valuation_api",
	Name:      "cache_writes_total",
	Help:      "Escrituras en la caché de reportes por resultado (ok, error).",
}, []string{"result"})

// Connect crea el cliente Redis y verifica la conexión.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	return client, nil
}

// Versioned caché JSON con versión global. Un *Versioned nil o sin cliente es un
// pass-through: siempre ejecuta el loader.
type Versioned struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVersioned construye la caché. client nil desactiva el almacenamiento.
func NewVersioned(client *redis.Client, ttl time.Duration) *Versioned {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Versioned{client: client, ttl: ttl}
}

func (c *Versioned) enabled() bool { return c != nil && c.client != nil }

// Version versión vigente; la inicializa en 1 si no existe.
func (c *Versioned) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		// SETNX: dos instancias arrancando a la vez no se pisan
		if err := c.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Key compone la clave con la versión vigente: parts unidas por ":" + ":" + versión.
func (c *Versioned) Key(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if !c.enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return joined + ":" + strconv.FormatInt(ver, 10), nil
}

// Fetch lee key en dest o, si no está, ejecuta loader, guarda su resultado y lo decodifica
// en dest. Un error de Redis no impide responder: al leer se cuenta como bypass y se usa el
// loader; al escribir se cuenta en cache_writes_total{result="error"}.
func (c *Versioned) Fetch(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader requerido")
	}
	if c.enabled() {
		payload, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if jsonErr := json.Unmarshal(payload, dest); jsonErr == nil {
				lookups.WithLabelValues("hit").Inc()
				return nil
			}
			lookups.WithLabelValues("miss").Inc()
		case errors.Is(err, redis.Nil):
			lookups.WithLabelValues("miss").Inc()
		default:
			lookups.WithLabelValues("bypass").Inc()
		}
	} else {
		lookups.WithLabelValues("bypass").Inc()
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	if c.enabled() {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			writes.WithLabelValues("error").Inc()
		} else {
			writes.WithLabelValues("ok").Inc()
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalida todas las entradas incrementando la versión. Devuelve la nueva versión.
func (c *Versioned) Bump(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	return c.client.Incr(ctx, versionKey).Result()
}
