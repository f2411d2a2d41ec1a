package transcoder

import (
	"github.com/uber-go/tally/v4"

	"github.com/wippyai/blockrep/errors"
)

type metrics struct {
	scope       tally.Scope
	encodes     tally.Counter
	decodes     tally.Counter
	conversions tally.Counter
	arenaBytes  tally.Counter
}

func newMetrics(scope tally.Scope) *metrics {
	if scope == nil {
		scope = tally.NoopScope
	}
	scope = scope.SubScope("transcoder")
	return &metrics{
		scope:       scope,
		encodes:     scope.Counter("encodes"),
		decodes:     scope.Counter("decodes"),
		conversions: scope.Counter("conversions"),
		arenaBytes:  scope.Counter("arena_bytes"),
	}
}

// failure counts err under its phase and kind.
func (m *metrics) failure(err error) {
	var phase errors.Phase
	if e, ok := err.(*errors.Error); ok {
		phase = e.Phase
	}
	m.scope.Tagged(map[string]string{
		"phase": string(phase),
		"kind":  string(errors.KindOf(err)),
	}).Counter("errors").Inc(1)
}
