package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/brightsend/wablast-backend/internal/model"
)

// MaxTemplates limits a multi-template selection.
const MaxTemplates = 3

var (
	ErrNoTemplates      = errors.New("at least one template is required")
	ErrTooManyTemplates = fmt.Errorf("at most %d templates per campaign", MaxTemplates)
)

// TemplateSendFunc sends one item using the template at the given index.
type TemplateSendFunc func(ctx context.Context, templateIndex int, item model.CampaignItem) Result

// CreditCost is the up-front charge for a multi-template run. It is computed
// before the first send and is not adjusted if a later template is skipped by
// a cancellation.
func CreditCost(recipients, templates int) int {
	return recipients * templates
}

// RunMulti executes one run per template, sequentially, against the same
// recipient set. Template k owns 1/N of the global progress range, so global
// progress reaches exactly total on the last item of the last template. A stop
// aborts the remaining templates entirely.
func (o *Orchestrator) RunMulti(ctx context.Context, templates []string, items []model.CampaignItem, send TemplateSendFunc, opts Options) (Outcome, error) {
	n := len(templates)
	if n == 0 {
		return Outcome{}, ErrNoTemplates
	}
	if n > MaxTemplates {
		return Outcome{}, ErrTooManyTemplates
	}

	perTemplate := len(items)
	total := n * perTemplate
	var agg Outcome

	for k := range templates {
		inner := opts
		if opts.OnProgress != nil {
			inner.OnProgress = func(current, _ int, label string) {
				opts.OnProgress(k*perTemplate+current, total,
					fmt.Sprintf("template %d/%d: %s", k+1, n, label))
			}
		}

		sub := o.Run(ctx, items, func(ctx context.Context, item model.CampaignItem) Result {
			return send(ctx, k, item)
		}, inner)

		agg.Sent += sub.Sent
		agg.Failed += sub.Failed
		if sub.Stopped {
			agg.Stopped = true
			break
		}
	}
	return agg, nil
}
