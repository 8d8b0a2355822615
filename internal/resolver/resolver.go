// Package resolver turns stored numeric group identifiers into live chat
// handles. A bare numeric id does not say whether it addresses a channel or
// a basic group, so the resolver probes the addressing schemes in a fixed
// order and remembers which one worked for each id.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/edgard/tgcollector/internal/errs"
	"github.com/edgard/tgcollector/internal/logger"
	"github.com/edgard/tgcollector/internal/platform"
)

// ErrEntityUnresolved is matched by every UnresolvedError.
var ErrEntityUnresolved = errs.New(errs.CodeEntityResolution, "entity unresolved")

// probeOrder is the fixed fallback sequence.
var probeOrder = []platform.RefKind{platform.RefChannel, platform.RefChat, platform.RefRaw}

// Attempt records one failed probe.
type Attempt struct {
	Kind platform.RefKind
	Err  error
}

// UnresolvedError is returned when every probe failed.
type UnresolvedError struct {
	Identifier string
	Attempts   []Attempt
}

func (e *UnresolvedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Kind, a.Err))
	}
	return fmt.Sprintf("could not resolve entity %s (%s)", e.Identifier, strings.Join(parts, "; "))
}

func (e *UnresolvedError) Code() string { return errs.CodeEntityResolution }

func (e *UnresolvedError) Unwrap() error { return nil }

func (e *UnresolvedError) Is(target error) bool {
	return target == ErrEntityUnresolved
}

// Normalize parses a stored identifier and strips the -100 channel prefix.
// Only channel-range values (at or below -10^12) carry the prefix; a basic
// group such as -1005550000 stays negative.
func Normalize(identifier string) (int64, error) {
	s := strings.TrimSpace(identifier)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errs.NewValidationError(fmt.Sprintf("invalid group identifier %q", identifier), err)
	}
	return unmark(id), nil
}

// unmark removes the channel offset from marked channel ids and leaves every
// other id untouched.
func unmark(id int64) int64 {
	if id <= -platform.ChannelIDOffset && id != math.MinInt64 {
		return -id - platform.ChannelIDOffset
	}
	return id
}

// Resolver resolves group identifiers. It is safe for concurrent use; the
// only state it keeps is the winning strategy per normalized id.
type Resolver struct {
	mu       sync.Mutex
	strategy map[int64]platform.RefKind
	logger   *slog.Logger
}

// New creates a Resolver.
func New(log *slog.Logger) *Resolver {
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{
		strategy: make(map[int64]platform.RefKind),
		logger:   log.With("component", "resolver"),
	}
}

// ResolveID resolves a stored numeric group id.
func (r *Resolver) ResolveID(ctx context.Context, c platform.Client, groupID int64) (*platform.Entity, error) {
	return r.resolve(ctx, c, strconv.FormatInt(groupID, 10), unmark(groupID))
}

// Resolve resolves identifier against the connected client. Probes run in
// order channel, chat, raw and stop at the first success. A cached strategy
// is tried first; if it fails the full sequence runs again.
func (r *Resolver) Resolve(ctx context.Context, c platform.Client, identifier string) (*platform.Entity, error) {
	id, err := Normalize(identifier)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, c, identifier, id)
}

func (r *Resolver) resolve(ctx context.Context, c platform.Client, identifier string, id int64) (*platform.Entity, error) {
	log := r.logger.With("identifier", identifier, "normalized_id", id)

	if kind, ok := r.cached(id); ok {
		entity, err := r.probe(ctx, c, kind, id)
		if err == nil {
			log.DebugContext(ctx, "Resolved with cached strategy", "strategy", kind)
			return entity, nil
		}
		log.DebugContext(ctx, "Cached strategy failed, probing again", "strategy", kind, "error", err)
		r.forget(id)
	}

	attempts := make([]Attempt, 0, len(probeOrder))
	for _, kind := range probeOrder {
		entity, err := r.probe(ctx, c, kind, id)
		if err == nil {
			r.remember(id, kind)
			log.DebugContext(ctx, "Resolved entity", "strategy", kind, "entity_id", entity.ID)
			return entity, nil
		}
		if ctx.Err() != nil {
			return nil, errs.NewTransientError("entity resolution interrupted", ctx.Err())
		}
		attempts = append(attempts, Attempt{Kind: kind, Err: err})
	}

	unresolved := &UnresolvedError{Identifier: identifier, Attempts: attempts}
	log.WarnContext(ctx, "Entity resolution failed", "error", unresolved)
	return nil, unresolved
}

func (r *Resolver) probe(ctx context.Context, c platform.Client, kind platform.RefKind, id int64) (*platform.Entity, error) {
	ref := platform.EntityRef{Kind: kind, ID: id}
	if kind != platform.RefRaw && id < 0 {
		// Basic groups are stored as -<id>; the typed probes want the bare id.
		ref.ID = -id
	}
	entity, err := c.ResolveEntity(ctx, ref)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, errors.New("client returned no entity")
	}
	return entity, nil
}

func (r *Resolver) cached(id int64) (platform.RefKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kind, ok := r.strategy[id]
	return kind, ok
}

func (r *Resolver) remember(id int64, kind platform.RefKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategy[id] = kind
}

func (r *Resolver) forget(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.strategy, id)
}
