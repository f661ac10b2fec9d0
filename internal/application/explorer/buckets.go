package explorer

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

// BucketStatus estado del visor de bucket ABC.
type BucketStatus int

const (
	BucketClosed BucketStatus = iota
	BucketLoading
	BucketLoaded
	BucketError
)

func (s BucketStatus) String() string {
	switch s {
	case BucketLoading:
		return "loading"
	case BucketLoaded:
		return "loaded"
	case BucketError:
		return "error"
	default:
		return "closed"
	}
}

// bucketState hay a lo sumo un bucket abierto; abrir otro descarta el anterior.
type bucketState struct {
	status  BucketStatus
	label   entity.Classification
	attempt uint64
	items   []entity.ValuedArticle
	err     error
}

// BucketView copia del bucket abierto.
type BucketView struct {
	Status BucketStatus
	Label  entity.Classification
	Items  []entity.ValuedArticle
	Err    error
}

// Bucket estado actual del visor.
func (x *Explorer) Bucket() BucketView {
	x.mu.Lock()
	defer x.mu.Unlock()
	return BucketView{
		Status: x.bucket.status,
		Label:  x.bucket.label,
		Items:  append([]entity.ValuedArticle(nil), x.bucket.items...),
		Err:    x.bucket.err,
	}
}

// OpenBucket consulta hasta BucketLimit artículos de la clase label bajo el alcance activo,
// sin pasar por la caché del árbol. Abrir la misma clase mientras carga no hace nada;
// abrir otra descarta la vista anterior y su respuesta tardía.
func (x *Explorer) OpenBucket(ctx context.Context, label string) error {
	class, err := entity.ParseClassification(label)
	if err != nil {
		return err
	}

	x.mu.Lock()
	if x.bucket.status == BucketLoading && x.bucket.label == class {
		x.mu.Unlock()
		return nil
	}
	t := x.nextTicketLocked()
	x.bucket = bucketState{status: BucketLoading, label: class, attempt: t.attempt}
	x.mu.Unlock()

	fctx, done := x.fetchContext(ctx)
	defer done()
	started := time.Now()
	items, err := x.svc.Bucket(fctx, t.scope, class, x.cfg.BucketLimit)
	observe(fetchBucket, started)
	outcome, err := fetchOutcome(fctx, err)

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.isStaleLocked(t.token) {
		fetchTotal.WithLabelValues(fetchBucket, outcomeStale).Inc()
		return nil
	}
	if x.bucket.attempt != t.attempt || x.bucket.status != BucketLoading {
		fetchTotal.WithLabelValues(fetchBucket, outcomeReplaced).Inc()
		return nil
	}
	fetchTotal.WithLabelValues(fetchBucket, outcome).Inc()

	switch outcome {
	case outcomeOK:
		if len(items) > x.cfg.BucketLimit {
			items = items[:x.cfg.BucketLimit]
		}
		x.bucket = bucketState{status: BucketLoaded, label: class, attempt: t.attempt, items: items}
		return nil
	case outcomeCancelled:
		x.bucket = bucketState{}
		return err
	default:
		x.bucket = bucketState{status: BucketError, label: class, attempt: t.attempt, err: err}
		x.log.Warn().Err(err).Str("class", string(class)).Msg("explorer: bucket ABC")
		return fmt.Errorf("explorer: bucket %s: %w", class, err)
	}
}

// CloseBucket cierra el visor; una respuesta pendiente se descarta.
func (x *Explorer) CloseBucket() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.bucket = bucketState{}
}
