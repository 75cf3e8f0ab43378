package subgraphs

import (
	"context"

	"github.com/carepulse/shift-orchestrator/internal/models"
)

// Auxiliar implements the stateless help subgraph from spec §4.6.5.
// It is also the degrade-to target when bootstrap cannot identify a
// shift (spec §4.10).
type Auxiliar struct{}

func (Auxiliar) Run(ctx context.Context, deps Deps, state *models.SessionState, text string, treatAsAnswer bool) (Outcome, error) {
	if state.ScheduleID == "" {
		return Outcome{Code: "help_context"}.withMissing([]string{"identificação do plantão"}), nil
	}
	return Outcome{Code: "help_generic"}, nil
}
