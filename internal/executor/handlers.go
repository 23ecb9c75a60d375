package executor

import (
	"context"
	"sort"
	"sync"

	"github.com/cloudshipai/loom/internal/consensus"
	"github.com/cloudshipai/loom/pkg/models"
)

// HandlerInput is what an AutoProcess handler receives on each attempt.
type HandlerInput struct {
	Annotations   []models.Annotation
	Context       map[string]interface{}
	HandlerConfig map[string]interface{}
}

// Handler processes an AutoProcess step. A non-nil, non-retryable error
// should be wrapped so the caller can identify it; by default any error a
// handler returns is treated as transient and retried (§4.4.4).
type Handler interface {
	Handle(ctx context.Context, in HandlerInput) (map[string]interface{}, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, in HandlerInput) (map[string]interface{}, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, in HandlerInput) (map[string]interface{}, error) {
	return f(ctx, in)
}

// PermanentError marks a handler failure the AutoProcess executor must
// not retry (§4.4.4 "permanent errors are not retried").
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string { return e.Cause.Error() }
func (e *PermanentError) Unwrap() error { return e.Cause }

// HandlerRegistry is the immutable-once-constructed handler lookup of §6
// (HandlerRegistry port) and §5 ("Handler registry — immutable once
// constructed").
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: map[string]Handler{}}
}

// NewBuiltinHandlerRegistry returns a registry pre-populated with the
// four built-in handlers named in §4.4.4.
func NewBuiltinHandlerRegistry() *HandlerRegistry {
	r := NewHandlerRegistry()
	r.Register("merge_annotations", HandlerFunc(mergeAnnotationsHandler))
	r.Register("compute_consensus", HandlerFunc(computeConsensusHandler))
	r.Register("select_majority", HandlerFunc(selectMajorityHandler))
	r.Register("passthrough", HandlerFunc(passthroughHandler))
	return r
}

// Register adds or replaces a handler. Callers should register all
// handlers before handing the registry to a Registry; Get takes the read
// lock on every lookup, so registration is safe at any time.
func (r *HandlerRegistry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Get looks up a handler by name.
func (r *HandlerRegistry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// mergeAnnotationsHandler unions annotation ids, deduplicating by id.
func mergeAnnotationsHandler(_ context.Context, in HandlerInput) (map[string]interface{}, error) {
	seen := map[string]bool{}
	var ids []string
	for _, a := range in.Annotations {
		id := a.ID.String()
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return map[string]interface{}{"annotation_ids": ids}, nil
}

// computeConsensusHandler dispatches to the consensus metric named in
// handler_config["metric"], extracting a "label" field from each
// annotation's Data as the category code. Supported metrics:
// cohens_kappa (requires exactly two annotators) and krippendorff_alpha.
func computeConsensusHandler(_ context.Context, in HandlerInput) (map[string]interface{}, error) {
	metric, _ := in.HandlerConfig["metric"].(string)
	if metric == "" {
		metric = "cohens_kappa"
	}

	switch metric {
	case "cohens_kappa":
		if len(in.Annotations) != 2 {
			return nil, &PermanentError{Cause: &consensus.LengthMismatchError{Expected: 2, Got: len(in.Annotations)}}
		}
		a := []string{labelOf(in.Annotations[0])}
		b := []string{labelOf(in.Annotations[1])}
		k, err := consensus.CohensKappa(a, b)
		if err != nil {
			return nil, &PermanentError{Cause: err}
		}
		return map[string]interface{}{"agreement": k, "metric": metric, "band": consensus.KappaBand(k)}, nil
	case "krippendorff_alpha":
		table := [][]*float64{labelsAsRow(in.Annotations)}
		a, err := consensus.KrippendorffAlpha(table, consensus.LevelNominal)
		if err != nil {
			return nil, &PermanentError{Cause: err}
		}
		return map[string]interface{}{"agreement": a, "metric": metric, "band": consensus.AlphaBand(a)}, nil
	default:
		return nil, &PermanentError{Cause: &consensus.ComputationError{Detail: "unsupported metric " + metric}}
	}
}

func labelOf(a models.Annotation) string {
	if a.Data == nil {
		return ""
	}
	s, _ := a.Data["label"].(string)
	return s
}

func labelsAsRow(annotations []models.Annotation) []*float64 {
	// Krippendorff's engine here works over numeric codes; map distinct
	// labels to codes in first-seen order.
	codes := map[string]float64{}
	next := 0.0
	row := make([]*float64, len(annotations))
	for i, a := range annotations {
		label := labelOf(a)
		c, ok := codes[label]
		if !ok {
			c = next
			codes[label] = c
			next++
		}
		v := c
		row[i] = &v
	}
	return row
}

// selectMajorityHandler returns the most-common label across submitted
// annotations, with its support count; ties broken by first-seen label.
func selectMajorityHandler(_ context.Context, in HandlerInput) (map[string]interface{}, error) {
	if len(in.Annotations) == 0 {
		return nil, &PermanentError{Cause: consensus.ErrEmptyInput}
	}
	counts := map[string]int{}
	var order []string
	for _, a := range in.Annotations {
		label := labelOf(a)
		if _, ok := counts[label]; !ok {
			order = append(order, label)
		}
		counts[label]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	best := order[0]
	return map[string]interface{}{"label": best, "support": counts[best]}, nil
}

// passthroughHandler returns the task context unchanged, useful for
// workflows that need an AutoProcess step purely to trigger a transition.
func passthroughHandler(_ context.Context, in HandlerInput) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(in.Context))
	for k, v := range in.Context {
		out[k] = v
	}
	return out, nil
}
