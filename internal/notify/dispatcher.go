package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"housekeeper/internal/domain"
	"housekeeper/internal/logging"
	"housekeeper/internal/metrics"
	"housekeeper/internal/models"

	"github.com/rs/zerolog"
)

// Dispatcher fans one event out to every configured channel of a team.
// Channels are independent: a failed delivery is retried per policy and
// recorded, but never blocks the remaining channels.
type Dispatcher struct {
	senders map[string]domain.ChannelSender
	policy  RetryPolicy
	logger  zerolog.Logger
}

func NewDispatcher(policy RetryPolicy, logger *zerolog.Logger, senders ...domain.ChannelSender) *Dispatcher {
	d := &Dispatcher{
		senders: make(map[string]domain.ChannelSender, len(senders)),
		policy:  policy,
		logger:  logging.Component(logger, "dispatcher"),
	}
	for _, s := range senders {
		d.senders[s.Type()] = s
	}
	return d
}

func (d *Dispatcher) NotifyTeam(ctx context.Context, team models.Team, event models.TeamEvent) []models.NotificationAttempt {
	event.TeamID = team.ID
	attempts := make([]models.NotificationAttempt, 0, len(team.Channels))

	for _, channel := range team.Channels {
		attempt := models.NotificationAttempt{TeamID: team.ID, Channel: channel.Type}

		sender, ok := d.senders[channel.Type]
		if !ok {
			attempt.Error = fmt.Sprintf("no sender configured for channel %q", channel.Type)
			d.logger.Warn().Int64("team_id", team.ID).Str("channel", channel.Type).Msg("channel has no sender")
			metrics.IncNotification(channel.Type, false)
			attempts = append(attempts, attempt)
			continue
		}

		err := d.deliver(ctx, sender, channel.Target, event)
		if err != nil {
			attempt.Error = err.Error()
			metrics.IncNotification(channel.Type, false)
			d.logger.Error().Err(err).
				Int64("team_id", team.ID).
				Str("channel", channel.Type).
				Msg("delivery failed")
		} else {
			attempt.Success = true
			metrics.IncNotification(channel.Type, true)
			d.logger.Debug().
				Int64("team_id", team.ID).
				Str("channel", channel.Type).
				Msg("delivered")
		}
		attempts = append(attempts, attempt)
	}

	return attempts
}

// TestTeam exercises every channel of a team with a synthetic event and
// reports whether all of them succeeded.
func (d *Dispatcher) TestTeam(ctx context.Context, team models.Team) ([]models.NotificationAttempt, bool) {
	event := models.TeamEvent{
		Type:    models.TeamEventTest,
		Message: fmt.Sprintf("Channel test for team %q", team.Name),
	}
	attempts := d.NotifyTeam(ctx, team, event)
	allOK := true
	for _, a := range attempts {
		if !a.Success {
			allOK = false
		}
	}
	return attempts, allOK
}

func (d *Dispatcher) deliver(ctx context.Context, sender domain.ChannelSender, target string, event models.TeamEvent) error {
	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxRetries+1; attempt++ {
		lastErr = sender.Send(ctx, target, event)
		if lastErr == nil {
			return nil
		}
		if attempt > d.policy.MaxRetries {
			break
		}
		timer := time.NewTimer(d.policy.NextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

// FormatEvent renders an event as the plain-text body used by the
// telegram and email channels.
func FormatEvent(event models.TeamEvent) string {
	if event.Type == models.TeamEventTest {
		msg := event.Message
		if msg == "" {
			msg = "Notification channel test"
		}
		return msg
	}

	var b strings.Builder
	b.WriteString("Cleaning schedule updated")
	if !event.WindowStart.IsZero() && !event.WindowEnd.IsZero() {
		fmt.Fprintf(&b, " (%s - %s)",
			event.WindowStart.Format(models.DateFormat),
			event.WindowEnd.Format(models.DateFormat))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "New tasks: %d\n", event.Created)
	fmt.Fprintf(&b, "Rescheduled: %d\n", event.Updated)
	fmt.Fprintf(&b, "Cancelled: %d", event.Cancelled)
	if event.Message != "" {
		b.WriteString("\n")
		b.WriteString(event.Message)
	}
	return b.String()
}
