package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/engine"
	"github.com/xkilldash9x/seatctl/internal/service"
)

type inviteFlags struct {
	accountID string
	jobID     string
	role      string
	file      string
}

func newInviteCmd() *cobra.Command {
	var f inviteFlags
	cmd := &cobra.Command{
		Use:   "invite [address...]",
		Short: "Invite addresses into one account's team and wait for the job to finish",
		Long: `Creates a bulk invite job on the given account and runs it. Addresses may be passed
as arguments or read from --file (one or more per line, "-" reads stdin). With --job an
existing pending job is run instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.jobID == "" && f.accountID == "" {
				return errors.New("either --account or --job is required")
			}
			var addresses []string
			if f.jobID == "" {
				var err error
				if addresses, err = collectAddresses(cmd, args, f.file); err != nil {
					return err
				}
			}
			printer := &progressPrinter{cmd: cmd}
			return withComponents(cmd, func(ctx context.Context, comps *service.Components) error {
				return runInvite(ctx, cmd, comps.Service, f, addresses)
			}, service.WithProgress(printer.print))
		},
	}
	cmd.Flags().StringVarP(&f.accountID, "account", "a", "", "account to invite from")
	cmd.Flags().StringVar(&f.jobID, "job", "", "run an existing pending job")
	cmd.Flags().StringVarP(&f.role, "role", "r", "", "role for the invitees: member or admin (default from config)")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read addresses from a file")
	cmd.MarkFlagsMutuallyExclusive("account", "job")
	return cmd
}

func runInvite(ctx context.Context, cmd *cobra.Command, svc *service.Service, f inviteFlags, addresses []string) error {
	jobID := f.jobID
	if jobID == "" {
		job, err := svc.CreateInviteJob(ctx, service.CreateJobRequest{
			AccountID: f.accountID,
			Addresses: addresses,
			Role:      schemas.Role(f.role),
		})
		if err != nil {
			return err
		}
		jobID = job.ID
		if !jsonOutput(cmd) {
			cmd.Printf("job %s created with %d addresses\n", job.ID, job.TotalCount)
		}
	}
	h, err := svc.ExecuteInviteJob(ctx, jobID)
	if err != nil {
		return err
	}
	return waitAndReport(ctx, cmd, svc, h)
}

func newAutoInviteCmd() *cobra.Command {
	var role, file string
	cmd := &cobra.Command{
		Use:   "auto-invite [address...]",
		Short: "Pick the account with the most free seats and invite the addresses there",
		RunE: func(cmd *cobra.Command, args []string) error {
			addresses, err := collectAddresses(cmd, args, file)
			if err != nil {
				return err
			}
			printer := &progressPrinter{cmd: cmd}
			return withComponents(cmd, func(ctx context.Context, comps *service.Components) error {
				res, err := comps.Service.AutoInvite(ctx, addresses, schemas.Role(role))
				if err != nil {
					if res.Message != "" {
						return fmt.Errorf("%s: %w", res.Message, err)
					}
					return err
				}
				if !jsonOutput(cmd) {
					cmd.Println(res.Message)
				}
				return waitAndReport(ctx, cmd, comps.Service, res.Handle)
			}, service.WithProgress(printer.print))
		},
	}
	cmd.Flags().StringVarP(&role, "role", "r", "", "role for the invitees: member or admin (default from config)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read addresses from a file")
	return cmd
}

// waitAndReport blocks until the job ends and prints its final record. A failed job is an error.
func waitAndReport(ctx context.Context, cmd *cobra.Command, svc *service.Service, h *engine.Handle) error {
	job, runErr := svc.WaitJob(ctx, h)
	if job == nil {
		return runErr
	}
	if err := printResult(cmd, job, formatJob(job)); err != nil {
		return err
	}
	if job.Status == schemas.JobFailed {
		return fmt.Errorf("invite job %s failed: %s", job.ID, job.Error)
	}
	return nil
}

// collectAddresses merges positional addresses with the contents of file.
func collectAddresses(cmd *cobra.Command, args []string, file string) ([]string, error) {
	addresses := append([]string(nil), args...)
	if file != "" {
		var (
			data []byte
			err  error
		)
		if file == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read addresses: %w", err)
		}
		addresses = append(addresses, string(data))
	}
	if len(addresses) == 0 {
		return nil, errors.New("no addresses given")
	}
	return addresses, nil
}
