package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lalithlochan/remindr/internal/engine"
	"github.com/lalithlochan/remindr/internal/outbox"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool
	if ctx == nil {
		ctx = newCommandContext(&jsonFlag)
	} else {
		ctx.jsonFlag = &jsonFlag
	}

	rootCmd := &cobra.Command{
		Use:           "remindctl",
		Short:         "Operate the task reminder engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print results as JSON")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newOutboxCommand(ctx))
	rootCmd.AddCommand(newPendingCommand(ctx))
	rootCmd.AddCommand(newCleanupCommand(ctx))
	rootCmd.AddCommand(newEnqueueCommand(ctx))

	return rootCmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate reminder settings and deliver due queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(p pipeline) error {
				summary, err := p.RunReminders(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, summary)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Settings", "Queue entries"},
					[][]string{{strconv.Itoa(summary.ProcessedSettings), strconv.Itoa(summary.ProcessedQueue)}},
					[]columnAlignment{alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum queue entries to deliver (default 100)")
	return cmd
}

func newOutboxCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		emails bool
		sms    bool
	)
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Drain the email and SMS outboxes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(p pipeline) error {
				summary, err := p.RunOutbox(cmd.Context(), engine.OutboxOptions{Limit: limit, Emails: emails, SMS: sms})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, summary)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Kind", "Scanned", "Sent", "Failed", "Skipped"},
					[][]string{countsRow("email", summary.Email), countsRow("sms", summary.SMS)},
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows per kind (default 50)")
	cmd.Flags().BoolVar(&emails, "emails", true, "Process email outbox")
	cmd.Flags().BoolVar(&sms, "sms", true, "Process SMS outbox")
	return cmd
}

func countsRow(kind string, c outbox.Counts) []string {
	return []string{
		kind,
		strconv.Itoa(c.Scanned),
		strconv.Itoa(c.Sent),
		strconv.Itoa(c.Failed),
		strconv.Itoa(c.Skipped),
	}
}

func newPendingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pending <user-id>",
		Short: "Count due, unsent reminders for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			return ctx.withPipeline(cmd, func(p pipeline) error {
				n, err := p.PendingCount(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"user_id": userID, "pending": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s has %d pending reminder(s)\n", userID, n)
				return nil
			})
		},
	}
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <task-id>",
		Short: "Delete unsent queue entries and deactivate settings for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}
			return ctx.withPipeline(cmd, func(p pipeline) error {
				result, err := p.CleanupTask(cmd.Context(), taskID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Task", "Deleted entries", "Deactivated settings"},
					[][]string{{
						result.TaskID.String(),
						strconv.FormatInt(result.DeletedEntries, 10),
						strconv.FormatInt(result.DeactivatedSettings, 10),
					}},
					[]columnAlignment{alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		noMail bool
		noSMS  bool
	)
	cmd := &cobra.Command{
		Use:       "enqueue <reminders|outbox>",
		Short:     "Publish a job tick to the SQS queue",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{engine.JobReminders, engine.JobOutbox},
		RunE: func(cmd *cobra.Command, args []string) error {
			tick := engine.Tick{Job: args[0], Limit: limit}
			if noMail {
				off := false
				tick.Emails = &off
			}
			if noSMS {
				off := false
				tick.SMS = &off
			}

			q, err := ctx.newEnqueuer(cmd.Context())
			if err != nil {
				return err
			}
			id, err := q.Enqueue(cmd.Context(), tick)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]string{"message_id": id, "job": tick.Job})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s tick (message %s)\n", tick.Job, id)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Batch limit carried by the tick")
	cmd.Flags().BoolVar(&noMail, "no-emails", false, "Skip the email outbox (outbox job)")
	cmd.Flags().BoolVar(&noSMS, "no-sms", false, "Skip the SMS outbox (outbox job)")
	return cmd
}
