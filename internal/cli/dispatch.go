package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mr1hm/disasterwatch/internal/alerts"
	"github.com/mr1hm/disasterwatch/internal/notify"
	"github.com/mr1hm/disasterwatch/internal/observability"
)

var dispatchEvent eventFlags

func init() {
	rootCmd.AddCommand(dispatchCmd)
	dispatchEvent.register(dispatchCmd)
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one alert cycle for an event and wait for every send",
	Long: "Resolves the event the same way as matches, then notifies every matching\n" +
		"subscriber through the configured providers. Low severity events are\n" +
		"skipped exactly as the server would skip them.\n\n" +
		"Provider failures are logged to stderr and do not fail the command.",
	RunE: runDispatch,
}

func runDispatch(cmd *cobra.Command, args []string) error {
	rt, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	ctx := cmd.Context()
	event, err := dispatchEvent.resolve(ctx, cmd, rt.store)
	if err != nil {
		return err
	}

	// nothing scrapes a one-shot run, so keep the collectors off the default registry
	metrics := observability.NewMetricsForTesting()
	mailer := notify.NewEmailSenderFromConfig(rt.cfg.Notify, rt.logger, metrics)
	texter := notify.NewSMSSenderFromConfig(rt.cfg.Notify, rt.logger, metrics)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "email provider: %s\n", providerName(mailer.Provider()))
	fmt.Fprintf(out, "sms provider:   %s\n", providerName(texter.Provider()))

	matcher := alerts.NewMatcher(rt.store, rt.logger)
	dispatcher := alerts.NewDispatcher(matcher, mailer, texter, rt.logger, metrics, alerts.Options{Workers: 1})
	dispatcher.Dispatch(ctx, event)

	fmt.Fprintf(out, "dispatch finished for %s %s at %s\n", event.Severity, event.Type, event.Location)
	return nil
}

func providerName(p interface{ Name() string }) string {
	if p == nil {
		return "none"
	}
	return p.Name()
}
