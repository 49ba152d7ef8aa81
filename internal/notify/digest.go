package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/zulandar/workyard/internal/capacity"
	"github.com/zulandar/workyard/internal/logging"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// OrgSource returns the current org-wide capacity roll-up.
type OrgSource func(ctx context.Context) (capacity.Team, error)

// Digest posts the org capacity snapshot on a cron schedule.
type Digest struct {
	source OrgSource
	pub    Publisher
	log    *zap.Logger
	cron   *cron.Cron
}

// NewDigest creates a digest publisher. Nothing runs until Start.
func NewDigest(source OrgSource, pub Publisher, log *zap.Logger) *Digest {
	return &Digest{source: source, pub: pub, log: logging.OrNop(log)}
}

// Start schedules the digest. An empty schedule disables it.
func (d *Digest) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		return nil
	}
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("notify: digest schedule %q: %w", schedule, err)
	}
	d.cron = cron.New(cron.WithParser(cronParser))
	d.cron.Schedule(sched, cron.FuncJob(func() {
		if err := d.Post(ctx); err != nil {
			d.log.Warn("notify: digest failed", zap.Error(err))
		}
	}))
	d.cron.Start()
	d.log.Info("notify: digest scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for a running digest to finish.
func (d *Digest) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
}

// Post builds and publishes one digest now.
func (d *Digest) Post(ctx context.Context) error {
	team, err := d.source(ctx)
	if err != nil {
		return err
	}
	d.pub.Publish(ctx, DigestEvent(team))
	return nil
}

// DigestEvent formats an org roll-up. People at or over capacity are listed
// most utilized first.
func DigestEvent(team capacity.Team) Event {
	s := team.Summary
	severity := "info"
	switch s.Band {
	case capacity.At:
		severity = "warning"
	case capacity.Over:
		severity = "error"
	}

	var hot []capacity.Snapshot
	for _, m := range team.Members {
		if m.Band.Severity() >= capacity.At.Severity() {
			hot = append(hot, m)
		}
	}
	sort.SliceStable(hot, func(i, j int) bool { return hot[i].Utilization > hot[j].Utilization })

	var body strings.Builder
	if len(hot) == 0 {
		body.WriteString("Nobody is at or over capacity.")
	}
	for _, m := range hot {
		fmt.Fprintf(&body, "• %s: %.0f%% (%s)\n", m.Name, m.Utilization*100, m.Band.Label())
	}

	return Event{
		Title:    fmt.Sprintf("Capacity digest: %s", s.Band.Label()),
		Body:     strings.TrimRight(body.String(), "\n"),
		Severity: severity,
		Color:    severityColor(severity),
		Fields: []Field{
			{Name: "People", Value: fmt.Sprintf("%d", s.People), Short: true},
			{Name: "Utilization", Value: fmt.Sprintf("%.0f%%", s.Utilization*100), Short: true},
			{Name: "Planned", Value: fmt.Sprintf("%.1f h/wk", s.PlannedHours), Short: true},
			{Name: "Actual", Value: fmt.Sprintf("%.1f h/wk", s.ActualHours), Short: true},
			{Name: "Data quality", Value: fmt.Sprintf("%.0f%%", s.DataQuality*100), Short: true},
		},
	}
}
