package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/seatctl/internal/service"
)

func newCheckLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-login <account-id>...",
		Short: "Probe whether each account's stored login still works and read its member count",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, comps *service.Components) error {
				return runCheckLogin(ctx, cmd, comps.Service, args)
			})
		},
	}
}

func runCheckLogin(ctx context.Context, cmd *cobra.Command, svc *service.Service, ids []string) error {
	results := make(map[string]service.LoginStatus, len(ids))
	for _, id := range ids {
		st, err := svc.CheckLogin(ctx, id)
		if err != nil {
			return fmt.Errorf("check-login %s: %w", id, err)
		}
		results[id] = st
		if !jsonOutput(cmd) {
			cmd.Println(formatLoginStatus(id, st))
		}
	}
	if jsonOutput(cmd) {
		return printResult(cmd, results, "")
	}
	return nil
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <account-id>",
		Short: "Read the account's member roster and store the count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, comps *service.Components) error {
				res, err := comps.Service.SyncMembers(ctx, args[0])
				if err != nil {
					return err
				}
				human := formatResult(args[0], res.Message, res.Screenshot)
				if res.Snapshot != nil {
					for _, addr := range res.Snapshot.Addresses {
						human += "\n  " + addr
					}
				}
				return printResult(cmd, res, human)
			})
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <account-id>",
		Short: "Log in with the stored credential in a fresh browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, comps *service.Components) error {
				res, err := comps.Service.VerifyCredentials(ctx, args[0])
				if err != nil {
					return err
				}
				return printResult(cmd, res, formatResult(args[0], res.Message, res.Screenshot))
			})
		},
	}
}

func newInitLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-login <account-id>",
		Short: "Open a visible browser on the account's persistent profile and wait for a manual login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, comps *service.Components) error {
				res, err := comps.Service.InitLogin(ctx, args[0])
				if err != nil {
					return err
				}
				return printResult(cmd, res, formatResult(args[0], res.Message, res.Screenshot))
			})
		},
	}
}

func newDeleteProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-profile <account-id>",
		Short: "Remove the account's persistent browser profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, comps *service.Components) error {
				if err := comps.Service.DeleteProfile(ctx, args[0]); err != nil {
					return err
				}
				cmd.Printf("%s: profile removed\n", args[0])
				return nil
			})
		},
	}
}
