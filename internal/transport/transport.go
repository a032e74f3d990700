// Package transport delivers engine output to the user. The engine never
// waits on a transport: progress flows through the aggregator's drop-oldest
// snapshot channel, so a slow consumer only sees fewer snapshots.
package transport

import (
	"github.com/taskmind/taskmind/internal/progress"
	"github.com/taskmind/taskmind/pkg/models"
)

// Transport is the outbound side of a chat integration.
type Transport interface {
	// Clarify asks the user for more detail when classification found no
	// confident match.
	Clarify(sessionID, message string, questions []string)
	// Confirm announces the pipeline about to run: the ordered capability
	// summary shown before resources are committed.
	Confirm(p *models.Pipeline)
	// Progress delivers a pipeline progress snapshot.
	Progress(s progress.Snapshot)
	// Result delivers the terminal pipeline state, including artifacts of
	// succeeded steps even when the pipeline failed part way.
	Result(p *models.Pipeline)
	// Notice delivers an out-of-band message, e.g. pipelines abandoned by a
	// previous process.
	Notice(message string)
}
