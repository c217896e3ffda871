package main

import (
	"complaintdesk/backend/internal/bulk"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.AutoMigrate(env.store.DB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			okColor.Println("✓ Schema up to date")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if env.tokens == nil {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			if _, err := env.store.GetUserRole(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("user %s has no role yet\nHint: run admin role %s <student|staff|admin>", args[0], args[0])
			}
			tok, err := env.tokens.Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
}

func roleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role <user-id> <student|staff|admin>",
		Short: "Set a user's role and optional profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			who, err := env.actingAs(ctx, cmd)
			if err != nil {
				return err
			}
			if who.Role != models.RoleAdmin {
				return fmt.Errorf("only admins can change roles")
			}
			role, err := models.ParseRole(args[1])
			if err != nil {
				return err
			}
			if err := env.store.SetUserRole(ctx, args[0], role); err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			chatID, _ := cmd.Flags().GetInt64("telegram")
			if name != "" || email != "" || chatID != 0 {
				patch := models.Profile{ID: args[0], FullName: name, Email: email, TelegramChatID: chatID}
				if _, err := env.store.MergeProfile(ctx, patch); err != nil {
					return err
				}
			}
			fmt.Printf("%s %s is now %s\n", okColor.Sprint("✓"), idColor.Sprint(args[0]), role)
			return nil
		},
	}
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("email", "", "contact email for assignment notices")
	cmd.Flags().Int64("telegram", 0, "Telegram chat id for assignment notices")
	return cmd
}

func bootstrapAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap-admin <user-id>",
		Short: "Make the first admin of a fresh deployment",
		Long:  "Grants the admin role to a user. Refused once any admin exists; after that use 'role' with --as.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.store.BootstrapAdmin(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("%s %s is now %s\n", okColor.Sprint("✓"), idColor.Sprint(args[0]), models.RoleAdmin)
			return nil
		},
	}
}

func assigneesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assignees",
		Short: "List staff and admins complaints can be assigned to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := env.assignments.ListEligibleAssignees(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				warnColor.Println("No staff members yet")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, headingColor.Sprint("ID\tROLE\tNAME\tEMAIL"))
			for _, a := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.UserID, a.Role, a.FullName, a.Email)
			}
			return w.Flush()
		},
	}
}

func assignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <complaint-id> <staff-id>",
		Short: "Assign a complaint and notify the assignee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			who, err := env.actingAs(ctx, cmd)
			if err != nil {
				return err
			}
			res, err := env.assignments.AssignAndNotify(ctx, who, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s assigned to %s\n", okColor.Sprint("✓"),
				idColor.Sprint(res.Complaint.ComplaintNumber), res.Assignee.UserID)
			if res.Warning != nil {
				warnColor.Printf("! %v\n", res.Warning)
			} else if res.Notified {
				fmt.Printf("%s assignee notified via %s\n", okColor.Sprint("✓"), env.cfg.Notifier)
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <complaint-id> <status>",
		Short: "Change a complaint's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			who, err := env.actingAs(ctx, cmd)
			if err != nil {
				return err
			}
			c, err := env.complaints.SetStatus(ctx, who, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s is %s\n", okColor.Sprint("✓"), idColor.Sprint(c.ComplaintNumber), c.Status)
			return nil
		},
	}
}

func bulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk --field <status|priority> --value <value> <complaint-id>...",
		Short: "Apply one change to many complaints, all or nothing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			who, err := env.actingAs(ctx, cmd)
			if err != nil {
				return err
			}
			field, _ := cmd.Flags().GetString("field")
			value, _ := cmd.Flags().GetString("value")

			res, err := env.bulk.Execute(ctx, who, bulk.Request{IDs: args, Field: field, Value: value})
			if err != nil {
				return err
			}
			fmt.Printf("%s Updated %d complaints (operation %s)\n", okColor.Sprint("✓"), res.Affected, idColor.Sprint(res.OperationID))
			return nil
		},
	}
	cmd.Flags().String("field", "", "status or priority")
	cmd.Flags().String("value", "", "new value")
	return cmd
}
