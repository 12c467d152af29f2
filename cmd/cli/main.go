package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/schoolhealth/config"
	"github.com/jwalitptl/schoolhealth/internal/backend"
	"github.com/jwalitptl/schoolhealth/internal/cache"
	"github.com/jwalitptl/schoolhealth/internal/confirm"
	"github.com/jwalitptl/schoolhealth/internal/model"
	batchService "github.com/jwalitptl/schoolhealth/internal/service/batch"
	medicationService "github.com/jwalitptl/schoolhealth/internal/service/medication"
	"github.com/jwalitptl/schoolhealth/pkg/auth"
	"github.com/jwalitptl/schoolhealth/pkg/logger"
	"github.com/jwalitptl/schoolhealth/pkg/messaging"
	"github.com/jwalitptl/schoolhealth/pkg/messaging/redis"
	"github.com/jwalitptl/schoolhealth/pkg/validator"
)

// app holds what every command needs. Tests fill in the services directly.
type app struct {
	in  io.Reader
	out io.Writer

	cfg        *config.Config
	log        *logger.Logger
	medication medicationService.MedicationServicer
	batches    batchService.BatchServicer
	broker     messaging.Broker
	loc        *time.Location

	actor     model.ActorContext
	confirmer confirm.Confirmer
}

func main() {
	a := &app{in: os.Stdin, out: os.Stdout}
	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var (
		configFile string
		token      string
		actorID    string
		role       string
		assumeYes  bool
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:          "schoolhealth",
		Short:        "Medication submissions and approvals for the school health office",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logger.WarnLevel
			if verbose {
				level = logger.DebugLevel
			}
			a.log = logger.NewLogger(&logger.Config{
				Level:      level,
				TimeFormat: time.Kitchen,
				Output:     cmd.ErrOrStderr(),
				Console:    true,
			})

			a.actor = actorFromFlags(token, actorID, role, a.log)
			if assumeYes {
				a.confirmer = confirm.AssumeYes
			} else {
				a.confirmer = confirm.NewPromptConfirmer(a.in, cmd.OutOrStdout())
			}
			if a.medication != nil && a.batches != nil {
				return nil
			}
			return a.wire(configFile)
		},
	}
	rootCmd.SetIn(a.in)
	rootCmd.SetOut(a.out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", os.Getenv("SCHOOLHEALTH_CONFIG"), "Path to config.yml")
	flags.StringVar(&token, "token", os.Getenv("SCHOOLHEALTH_TOKEN"), "Bearer token forwarded to the backend")
	flags.StringVar(&actorID, "actor", os.Getenv("SCHOOLHEALTH_ACTOR"), "Actor id when the token carries none")
	flags.StringVar(&role, "role", os.Getenv("SCHOOLHEALTH_ROLE"), "Actor role (PARENT, NURSE, ADMIN)")
	flags.BoolVarP(&assumeYes, "yes", "y", false, "Acknowledge destructive actions without prompting")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(submissionsCmd(a))
	rootCmd.AddCommand(confirmationsCmd(a))
	rootCmd.AddCommand(schedulesCmd(a))
	rootCmd.AddCommand(evidenceCmd(a))
	rootCmd.AddCommand(imageCmd(a))
	rootCmd.AddCommand(batchesCmd(a))
	rootCmd.AddCommand(eventsCmd(a))

	return rootCmd
}

// actorFromFlags prefers the identity inside the token over the flags.
func actorFromFlags(token, actorID, role string, log *logger.Logger) model.ActorContext {
	actor := model.ActorContext{
		ActorID: actorID,
		Role:    model.Role(strings.ToUpper(role)),
		Token:   token,
	}
	if token == "" {
		return actor
	}
	claims, err := auth.NewClaimsReader().Read(token)
	if err != nil {
		log.Debug("token is not a readable JWT, forwarding as is")
		return actor
	}
	if claims.ActorID != "" {
		actor.ActorID = claims.ActorID
	}
	if claims.Role != "" {
		actor.Role = model.Role(claims.Role)
	}
	return actor
}

// wire builds the services against the configured backend. The CLI is one short-lived
// process, so snapshots stay in memory and actions are only logged.
func (a *app) wire(configFile string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.loc = cfg.Location()

	client, err := backend.NewClient(backend.Config{
		BaseURL:       cfg.Backend.URL,
		Timeout:       cfg.Backend.Timeout,
		Breaker:       cfg.BreakerSettings(),
		MaxImageBytes: cfg.Backend.MaxImageBytes,
	}, nil, a.log.ZL)
	if err != nil {
		return err
	}

	store := cache.NewMemoryStore(cfg.SnapshotConfig(), nil)
	publisher := messaging.LogPublisher{Logger: &a.log.ZL}

	a.medication = medicationService.NewService(client, store, medicationService.Config{
		Validator:         validator.New(),
		Publisher:         publisher,
		Logger:            a.log.ZL,
		MaxImageDimension: cfg.Image.MaxDimension,
	})
	a.batches = batchService.NewService(client, store, batchService.Config{
		Publisher: publisher,
		Logger:    a.log.ZL,
	})
	return nil
}

// eventBroker connects to the activity channel on first use.
func (a *app) eventBroker(ctx context.Context) (messaging.Broker, string, error) {
	if a.broker != nil {
		channel := "schoolhealth.actions"
		if a.cfg != nil {
			channel = a.cfg.Events.Channel
		}
		return a.broker, channel, nil
	}
	if a.cfg == nil {
		return nil, "", fmt.Errorf("no configuration loaded")
	}
	broker, err := redis.NewRedisBroker(ctx, a.cfg.ToBrokerConfig(), &a.log.ZL)
	if err != nil {
		return nil, "", err
	}
	a.broker = broker
	return broker, a.cfg.Events.Channel, nil
}

func (a *app) location() *time.Location {
	if a.loc == nil {
		return time.Local
	}
	return a.loc
}
