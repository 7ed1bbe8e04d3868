package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"storefront/config"
	"storefront/internal/app"
	"storefront/internal/broker"
	"storefront/internal/catalog"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/spf13/cobra"
)

// NewCatalogCommand creates the catalog command
func NewCatalogCommand(opts *RootOptions) *cobra.Command {
	var filter catalog.Filter

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List products, optionally filtered by category or search text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *runtime) error {
				view := rt.app.Catalog().Search(cmd.Context(), filter)
				return emit(cmd.OutOrStdout(), opts.Format, view, func(w io.Writer) error {
					return renderCatalog(w, view)
				})
			})
		},
	}

	cmd.Flags().Int64Var(&filter.CategoryID, "category", 0, "category id")
	cmd.Flags().StringVar(&filter.Query, "q", "", "search text")
	return cmd
}

// NewCartCommand creates the cart command group
func NewCartCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the persisted cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, opts, func(ctx context.Context, a *app.App) error { return nil })
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the cart and its totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, opts, func(ctx context.Context, a *app.App) error { return nil })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add PRODUCT_ID",
		Short: "Add one unit of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runCart(cmd, opts, func(ctx context.Context, a *app.App) error {
				_, err := a.AddToCart(ctx, id)
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set PRODUCT_ID QUANTITY",
		Short: "Set the quantity of a cart line; zero removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			return runCart(cmd, opts, func(ctx context.Context, a *app.App) error {
				a.UpdateQuantity(ctx, id, qty)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove PRODUCT_ID",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runCart(cmd, opts, func(ctx context.Context, a *app.App) error {
				a.RemoveFromCart(ctx, id)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, opts, func(ctx context.Context, a *app.App) error {
				a.ClearCart(ctx)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Push local cart units missing from the server cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, opts, func(ctx context.Context, a *app.App) error {
				if a.Sessions().Current() == nil {
					return session.ErrNoSession
				}
				pushed := a.Cart().Reconcile(ctx)
				_, err := fmt.Fprintf(cmd.ErrOrStderr(), "Pushed %d unit(s) to the server cart\n", pushed)
				return err
			})
		},
	})

	return cmd
}

// runCart applies fn and prints the resulting cart
func runCart(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *app.App) error) error {
	ctx := cmd.Context()
	return withRuntime(ctx, func(rt *runtime) error {
		if err := fn(ctx, rt.app); err != nil {
			return err
		}
		if opts.Format == "text" {
			if err := renderBanner(cmd.ErrOrStderr(), rt.app.Banner()); err != nil {
				return err
			}
		}
		snap := rt.app.Cart().Snapshot()
		return emit(cmd.OutOrStdout(), opts.Format, snap, func(w io.Writer) error {
			return renderCart(w, snap)
		})
	})
}

// NewCheckoutCommand creates the checkout command
func NewCheckoutCommand(opts *RootOptions) *cobra.Command {
	var delivery models.DeliveryInfo

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Submit the cart as an order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withRuntime(ctx, func(rt *runtime) error {
				rt.app.SetDelivery(delivery)
				receipt, err := rt.app.Checkout(ctx)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts.Format, receipt, func(w io.Writer) error {
					return renderReceipt(w, receipt)
				})
			})
		},
	}

	cmd.Flags().StringVar(&delivery.Address, "address", "", "delivery address")
	cmd.Flags().StringVar(&delivery.Phone, "phone", "", "delivery phone")
	return cmd
}

// NewLoginCommand creates the login command
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	var creds models.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and mirror the local cart to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withRuntime(ctx, func(rt *runtime) error {
				sess, err := rt.app.Login(ctx, creds)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts.Format, sess.User, func(w io.Writer) error {
					return renderSession(w, sess)
				})
			})
		},
	}

	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	return cmd
}

// NewRegisterCommand creates the register command
func NewRegisterCommand(opts *RootOptions) *cobra.Command {
	var profile models.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withRuntime(ctx, func(rt *runtime) error {
				sess, err := rt.app.Register(ctx, profile)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts.Format, sess.User, func(w io.Writer) error {
					return renderSession(w, sess)
				})
			})
		},
	}

	cmd.Flags().StringVar(&profile.Email, "email", "", "account email")
	cmd.Flags().StringVar(&profile.Password, "password", "", "account password")
	cmd.Flags().StringVar(&profile.FullName, "name", "", "full name")
	return cmd
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withRuntime(ctx, func(rt *runtime) error {
				rt.app.Logout(ctx)
				return renderBanner(cmd.OutOrStdout(), rt.app.Banner())
			})
		},
	}
}

// NewOrdersCommand creates the orders command
func NewOrdersCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "orders [ORDER_ID]",
		Short: "List your orders or show one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withRuntime(ctx, func(rt *runtime) error {
				if err := rt.app.Navigate(app.ViewProfile); err != nil {
					return err
				}
				if len(args) == 0 {
					orders, err := rt.app.Orders(ctx)
					if err != nil {
						return err
					}
					return emit(cmd.OutOrStdout(), opts.Format, orders, func(w io.Writer) error {
						return renderOrders(w, orders)
					})
				}

				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				order, err := rt.app.Order(ctx, id)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts.Format, order, func(w io.Writer) error {
					return renderOrder(w, order)
				})
			})
		},
	}
}

// NewAdminCommand creates the read-only admin reporting commands
func NewAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Read-only admin reports",
	}

	for _, kind := range []string{app.ReportItems, app.ReportStats} {
		cmd.AddCommand(&cobra.Command{
			Use:   kind,
			Short: fmt.Sprintf("Show the %s report", kind),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return withRuntime(ctx, func(rt *runtime) error {
					report, err := rt.app.Report(ctx, kind)
					if err != nil {
						return err
					}
					return renderReport(cmd.OutOrStdout(), report)
				})
			},
		})
	}
	return cmd
}

// NewActivityCommand creates the activity command group
func NewActivityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Storefront activity events",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Print activity events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivityTail(cmd)
		},
	})
	return cmd
}

func runActivityTail(cmd *cobra.Command) error {
	cfg := config.Load()
	if !cfg.Kafka.Enabled() {
		return errors.New("KAFKA_BROKERS is not set")
	}
	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer util.SyncLogger()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicActivity, cfg.Kafka.ConsumerGroup)
	w := worker.NewActivityWorker(consumer, cmd.OutOrStdout())
	defer w.Stop()

	if err := w.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
