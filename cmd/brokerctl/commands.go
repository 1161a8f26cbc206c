package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/david/contract-broker/internal/app"
	"github.com/david/contract-broker/internal/auth"
	"github.com/david/contract-broker/internal/models"
	"github.com/spf13/cobra"
)

var (
	flagSources  []string
	flagLimit    int
	flagSend     bool
	flagTemplate string
	flagOfficers []int64
	flagSubject  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion cycle (all active sources unless --source is given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			results, err := a.Coordinator.Run(cmd.Context(), flagSources...)
			renderSummaries(cmd.OutOrStdout(), results)
			return err
		})
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the most recent ingestion ledger entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			runs, err := a.Store.RecentRuns(cmd.Context(), flagLimit)
			if err != nil {
				return err
			}
			renderRuns(cmd.OutOrStdout(), runs)
			return nil
		})
	},
}

var followupsCmd = &cobra.Command{
	Use:   "followups",
	Short: "List follow-ups due today; --send mails one follow-up per eligible officer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			a.Jobs.AutoFollowUp = flagSend
			res, err := a.Jobs.CheckReminders(cmd.Context())
			if err != nil {
				return err
			}
			renderReminders(cmd.OutOrStdout(), res.Reminders)
			if flagSend {
				fmt.Fprintf(cmd.OutOrStdout(), "follow-ups sent: %d\n", res.FollowUpsSent)
			}
			return nil
		})
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send templated outreach",
}

var notifyBulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Send one template to a list of officers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(flagOfficers) == 0 {
			return fmt.Errorf("at least one --officer is required")
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			res, err := a.Dispatcher.SendBulk(cmd.Context(), flagOfficers, models.TemplateType(flagTemplate))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent: %d  failed: %d\n", res.Sent, res.Failed)
			return nil
		})
	},
}

var notifyAlertCmd = &cobra.Command{
	Use:   "alert <contract-id>",
	Short: "Alert every officer at the contract's agency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid contract id %q", args[0])
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			sent, err := a.Dispatcher.SendOpportunityAlerts(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "alerts sent: %d\n", sent)
			return nil
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Reports",
}

var reportWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Build and mail the weekly performance report now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			s, err := a.Reporter.SendWeekly(cmd.Context())
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), s)
			return nil
		})
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect or run scheduled jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs and their next run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			r, err := a.Runner()
			if err != nil {
				return err
			}
			renderJobs(cmd.OutOrStdout(), r.Names(), r.Next())
			return nil
		})
	},
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a scheduled job immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			r, err := a.Runner()
			if err != nil {
				return err
			}
			return r.RunNow(cmd.Context(), args[0])
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin bearer token for the trigger API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if strings.TrimSpace(cfg.Admin.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set; a token signed with an ephemeral key is useless")
		}
		svc, err := auth.NewService(cfg.Admin.Secret, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL, logger)
		if err != nil {
			return err
		}
		subject := flagSubject
		if subject == "" {
			subject = cfg.Admin.Email
		}
		token, exp, err := svc.IssueAdminToken(subject)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format("2006-01-02 15:04 MST"))
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&flagSources, "source", nil, "source ids to run (repeatable or comma separated)")
	runsCmd.Flags().IntVar(&flagLimit, "limit", 20, "number of ledger entries")
	followupsCmd.Flags().BoolVar(&flagSend, "send", false, "send follow-up emails for eligible reminders")

	notifyBulkCmd.Flags().StringVar(&flagTemplate, "template", string(models.TemplateIntroduction), "introduction, follow_up or alert")
	notifyBulkCmd.Flags().Int64SliceVar(&flagOfficers, "officer", nil, "officer ids")
	notifyCmd.AddCommand(notifyBulkCmd, notifyAlertCmd)

	reportCmd.AddCommand(reportWeeklyCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsRunCmd)
	tokenCmd.Flags().StringVar(&flagSubject, "subject", "", "token subject (defaults to the admin email)")
}
