// Command example_adapter runs a sentence splitting handler as a stream
// operator and prints words per output stream.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/birdayz/kcogroup/kadapter"
	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kstream"
	"github.com/birdayz/kcogroup/pkg/log"
)

// splitter emits (word, length) on the default stream and words of at
// least min-length characters on the raw "long" stream.
type splitter struct {
	out       kadapter.Emitter
	minLength int
	log       logr.Logger
}

func (s *splitter) DeclareOutputFields(d kadapter.OutputDeclarer) {
	d.Declare(kadapter.NewFields("word", "length"))
	d.DeclareStream("long", kadapter.NewFields("word"))
}

func (s *splitter) Prepare(conf map[string]string, tctx kadapter.TopologyContext, out kadapter.Emitter) error {
	s.out = out
	s.log = tctx.Logger
	s.log.Info("Prepared", "instance", tctx.InstanceID, "task", tctx.TaskID, "language", conf["language"])
	return nil
}

func (s *splitter) Execute(in kadapter.Input[string]) error {
	for _, w := range strings.Fields(in.Value) {
		w = strings.Trim(w, ".,;:!?")
		s.out.Emit(w, len(w))
		if len(w) >= s.minLength {
			s.out.EmitTo("long", w)
		}
	}
	return nil
}

func (s *splitter) Cleanup() {
	s.log.Info("Cleaned up")
}

func main() {
	if err := newCommand(newViper()).Execute(); err != nil {
		os.Exit(1)
	}
}

// newViper reads settings from KCOGROUP_* environment variables, e.g.
// KCOGROUP_MIN_LENGTH for --min-length.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("kcogroup")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// newCommand binds its flags to v; flags override the environment.
func newCommand(v *viper.Viper) *cobra.Command {
	command := &cobra.Command{
		Use:           "example_adapter [sentence...]",
		Short:         "Split sentences with an element adapter",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.Logr(log.New()).WithName("example-adapter")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if len(args) == 0 {
				args = []string{
					"The quick brown fox jumps over the lazy dog.",
					"Windows fire once the watermark passes their end.",
				}
			}
			if err := run(ctx, v, logger, args); err != nil {
				logger.Error(err, "Job failed")
				return err
			}
			return nil
		},
	}

	flags := command.Flags()
	flags.Int("min-length", 6, "Minimum length of words on the long stream")
	flags.String("language", "en", "Passed to the handler as job parameter")
	flags.Bool("trace", false, "Log every element handed to an operator")
	cobra.CheckErr(v.BindPFlags(flags))

	return command
}

func run(ctx context.Context, v *viper.Viper, logger logr.Logger, sentences []string) error {
	opts := []kstream.Option{
		kstream.WithLogr(logger),
		kstream.WithJobParameters(map[string]string{"language": v.GetString("language")}),
	}
	if v.GetBool("trace") {
		opts = append(opts, kstream.WithInterceptors(kprocessor.LoggingInterceptor(logger.WithName("trace"))))
	}
	env := kstream.NewEnv(opts...)

	recs := make([]kprocessor.Record[string], 0, len(sentences))
	start := time.Now()
	for i, s := range sentences {
		recs = append(recs, kprocessor.NewRecord(s, start.Add(time.Duration(i)*time.Millisecond)))
	}
	src, err := kstream.FromRecords(env, "sentences", recs)
	if err != nil {
		return err
	}

	spec, err := kadapter.New[string](&splitter{minLength: v.GetInt("min-length")},
		kadapter.WithName("splitter"),
		kadapter.WithInputComponentID("sentences"),
		kadapter.WithRawOutputs("long"),
	)
	if err != nil {
		return err
	}
	outs, err := kadapter.Transform(src, "split", spec)
	if err != nil {
		return err
	}

	words, err := outs.Stream(kadapter.DefaultStreamID)
	if err != nil {
		return err
	}
	err = kstream.ForEach(words, "print-words", func(_ context.Context, r kprocessor.Record[kadapter.Tuple]) error {
		logger.Info("Word", "word", r.Value[0], "length", r.Value[1])
		return nil
	})
	if err != nil {
		return err
	}

	long, err := kadapter.Raw[string](outs, "long")
	if err != nil {
		return err
	}
	err = kstream.ForEach(long, "print-long", func(_ context.Context, r kprocessor.Record[string]) error {
		logger.Info("Long word", "word", r.Value, "timestamp", r.Metadata.Timestamp)
		return nil
	})
	if err != nil {
		return err
	}

	return env.Execute(ctx)
}
