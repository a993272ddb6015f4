package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"listingdesk/auth"
	"listingdesk/models"
)

func signupCmd() *cobra.Command {
	var p auth.SignUpParams
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			user, sess, err := a.auth.SignUp(ctx, p)
			if err != nil {
				return err
			}
			if sess == nil {
				fmt.Printf("Account %s created. Confirm your email, then run `listingdesk login`.\n", user.Email)
				return nil
			}
			a.settle()

			if _, ok := a.store.Profile.Get(user.ID); !ok {
				op := a.store.Profile.Create(ctx, models.Profile{
					ID:        user.ID,
					FirstName: p.FirstName,
					LastName:  p.LastName,
					Email:     p.Email,
				})
				if err := op.Wait(); err != nil {
					return fmt.Errorf("create profile: %w", err)
				}
			}
			fmt.Printf("Signed up and signed in as %s\n", user.Email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&p.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&p.Password, "password", "", "Account password")
	cmd.Flags().StringVar(&p.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&p.LastName, "last-name", "", "Last name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if _, err := a.auth.SignInWithPassword(ctx, email, password); err != nil {
				if errors.Is(err, auth.ErrEmailNotConfirmed) {
					return fmt.Errorf("%w: check your inbox for the confirmation link", err)
				}
				return err
			}
			a.settle()

			sess, err := a.store.RequireSession()
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", displayName(sess))
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if _, err := a.store.Restore(); err != nil {
				return err
			}
			err := a.store.SignOut(ctx)
			a.settle()
			if err != nil {
				fmt.Printf("Signed out locally (provider: %v)\n", err)
				return nil
			}
			fmt.Println("Signed out")
			return nil
		}),
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			sess, err := a.signedIn(ctx)
			if err != nil {
				return err
			}
			claims, err := auth.ParseClaims(sess.AccessToken, a.cfg.Supabase.JWTSecret)
			if err != nil {
				return err
			}
			fmt.Printf("Name:    %s\n", displayName(sess))
			fmt.Printf("Email:   %s\n", sess.User.Email)
			fmt.Printf("User ID: %s\n", sess.User.ID)
			fmt.Printf("Role:    %s\n", claims.Role)
			if claims.ExpiresAt != nil {
				fmt.Printf("Expires: %s\n", claims.ExpiresAt.Time.Local().Format("2006-01-02 15:04"))
			}
			return nil
		}),
	}
}

func displayName(sess *auth.Session) string {
	name := models.Profile{FirstName: sess.FirstName, LastName: sess.LastName}.FullName()
	if name == "" {
		return sess.User.Email
	}
	return name
}
