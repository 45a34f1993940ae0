package identity

import (
	"context"
	"errors"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
)

// ErrNoActor is returned when no provider source yields an identity
var ErrNoActor = errors.New("no actor identity available")

const maxActorRunes = 128

// Normalize folds an actor to NFKC without control characters or surrounding space
func Normalize(actor string) string {
	actor = norm.NFKC.String(actor)
	actor = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, actor)
	actor = strings.TrimSpace(actor)

	if runes := []rune(actor); len(runes) > maxActorRunes {
		actor = strings.TrimSpace(string(runes[:maxActorRunes]))
	}
	return actor
}

// StaticProvider always reports the same actor
type StaticProvider struct {
	actor string
}

// NewStaticProvider creates a provider for a fixed actor
func NewStaticProvider(actor string) *StaticProvider {
	return &StaticProvider{actor: Normalize(actor)}
}

// Actor implements output.ActorProvider
func (p *StaticProvider) Actor(context.Context) (string, error) {
	if p.actor == "" {
		return "", ErrNoActor
	}
	return p.actor, nil
}

// EnvProvider reports the configured actor, then $LOANSTAGE_ACTOR, then $USER
type EnvProvider struct {
	configured string
	lookup     func(string) string
}

// NewEnvProvider creates an environment-backed provider; configured wins when set
func NewEnvProvider(configured string) *EnvProvider {
	return &EnvProvider{configured: configured, lookup: os.Getenv}
}

// Actor implements output.ActorProvider
func (p *EnvProvider) Actor(context.Context) (string, error) {
	for _, candidate := range []string{p.configured, p.lookup("LOANSTAGE_ACTOR"), p.lookup("USER")} {
		if a := Normalize(candidate); a != "" {
			return a, nil
		}
	}
	return "", ErrNoActor
}

type actorKey struct{}

// WithActor attaches a request-scoped actor, such as one taken from an HTTP header
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, Normalize(actor))
}

// ContextProvider prefers an actor attached with WithActor and falls back otherwise
type ContextProvider struct {
	fallback output.ActorProvider
}

// NewContextProvider wraps fallback
func NewContextProvider(fallback output.ActorProvider) *ContextProvider {
	return &ContextProvider{fallback: fallback}
}

// Actor implements output.ActorProvider
func (p *ContextProvider) Actor(ctx context.Context) (string, error) {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a, nil
	}
	if p.fallback == nil {
		return "", ErrNoActor
	}
	return p.fallback.Actor(ctx)
}
