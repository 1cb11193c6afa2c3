package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/f3rmion/fyenroll/config"
	"github.com/f3rmion/fyenroll/coordinator"
	"github.com/f3rmion/fyenroll/enroll"
	"github.com/f3rmion/fyenroll/frost"
	"github.com/f3rmion/fyenroll/group"
	"github.com/f3rmion/fyenroll/keystore"
	"github.com/f3rmion/fyenroll/peer"
	"github.com/f3rmion/fyenroll/transport"
)

type simulateOptions struct {
	Enrollments int
	Dealer      bool
	Passphrase  string
	Message     string
}

var simOpts simulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run key generation and enrollments in-process",
	Long: `Generate a (t, n) key with FROST DKG (or a trusted dealer), then enroll
new share-holders one at a time over an in-memory transport. Each newcomer
joins the holders that enroll the next one.

After the last enrollment the tool reconstructs the secret from t shares
that include the newest holders and signs a message with them.

Examples:
  # Enroll two holders into the default 2-of-3 group
  fyenroll simulate --enroll 2

  # 3-of-5 on secp256k1 with encrypted share backups
  FROST_CURVE=secp256k1 fyenroll simulate -t 3 -n 5 --passphrase secret`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&simOpts.Enrollments, "enroll", "k", 1, "number of holders to enroll")
	simulateCmd.Flags().BoolVar(&simOpts.Dealer, "dealer", false, "use trusted dealer key generation instead of DKG")
	simulateCmd.Flags().StringVar(&simOpts.Passphrase, "passphrase", "", "passphrase for share backups (env FROST_BACKUP_PASSPHRASE)")
	simulateCmd.Flags().StringVar(&simOpts.Message, "message", "enrolled", "message to sign after enrollment")
	simulateCmd.Flags().IntP("threshold", "t", config.DefaultThreshold, "signing threshold")
	simulateCmd.Flags().IntP("participants", "n", config.DefaultParticipants, "initial number of holders")

	for key, flag := range map[string]string{"threshold": "threshold", "participants": "participants"} {
		if err := viper.BindPFlag(key, simulateCmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts := simOpts
	if opts.Passphrase == "" {
		opts.Passphrase = viper.GetString("backup_passphrase")
	}
	return simulate(cmd.Context(), cfg, opts, cmd.OutOrStdout(), logger)
}

func simulate(ctx context.Context, cfg config.Config, opts simulateOptions, out io.Writer, log zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Enrollments < 0 {
		return errors.Errorf("cannot enroll %d holders", opts.Enrollments)
	}
	if opts.Enrollments > 0 && !config.EnrollmentAllowed(cfg.Participants+opts.Enrollments-1, cfg.Threshold) {
		return errors.Errorf("group of %d cannot grow by %d (limit %d)", cfg.Participants, opts.Enrollments, config.MaxParticipants)
	}
	g, err := cfg.Group()
	if err != nil {
		return err
	}

	shares, secretKey, err := keygen(g, cfg, opts.Dealer)
	if err != nil {
		return errors.Wrap(err, "key generation")
	}
	groupKey := shares[0].GroupKey
	if rec := config.RecommendedThreshold(cfg.Participants); cfg.Threshold < rec {
		log.Warn().Int("threshold", cfg.Threshold).Int("recommended", rec).Msg("threshold is below a simple majority of holders")
	}
	fmt.Fprintf(out, "Generated %d-of-%d key on %s\n", cfg.Threshold, cfg.Participants, g.Name())
	fmt.Fprintf(out, "Group key: %s\n", hex.EncodeToString(groupKey.Bytes()))

	var store *keystore.Store
	if cfg.EnableShareBackup {
		if opts.Passphrase == "" {
			log.Warn().Msg("share backup enabled but no passphrase given, skipping backups")
		} else if store, err = keystore.Open(cfg.BackupDir, []byte(opts.Passphrase)); err != nil {
			return err
		}
	}

	tr := transport.NewMemory(nil)
	coord, err := coordinator.New(cfg.Coordinator(), tr,
		coordinator.WithLogger(log),
		coordinator.WithMetrics(coordinator.NewMetrics(prometheus.NewRegistry())),
	)
	if err != nil {
		return err
	}

	parts := make(map[int]enroll.Participant, cfg.Participants+opts.Enrollments)
	for _, ks := range shares {
		if !config.ValidIndex(ks.Index, cfg.Participants) {
			return errors.Errorf("key generation produced index %d outside 1..%d", ks.Index, cfg.Participants)
		}
		p, err := enroll.FromKeyShare(g, ks, cfg.Threshold, cfg.Participants)
		if err != nil {
			return err
		}
		if err := register(coord, tr, p, log); err != nil {
			return err
		}
		parts[p.Index()] = p
	}

	for k := 0; k < opts.Enrollments; k++ {
		n := coord.Participants()
		set := lastIndices(parts, cfg.Threshold)
		nc, err := enroll.NewNewcomer(g, n+1, cfg.Threshold, n)
		if err != nil {
			return err
		}
		newcomer, err := peer.NewNewcomer(nc, tr, peer.WithLogger(log))
		if err != nil {
			return err
		}

		res, err := coord.Enroll(ctx, coordinator.Request{Set: set, Newcomer: newcomer})
		if err != nil {
			return errors.Wrapf(err, "enroll index %d (%s)", n+1, enroll.Classify(err))
		}
		p := newcomer.Participant()
		fmt.Fprintf(out, "Enrolled index %d from %v in %d attempt(s), verification %s\n", res.NewIndex, res.Set, res.Attempts, res.Verification)
		fmt.Fprintf(out, "  public share: %s\n", hex.EncodeToString(res.PublicShare.Bytes()))

		if err := register(coord, tr, p, log); err != nil {
			return err
		}
		for i, q := range parts {
			parts[i] = q.Grow()
		}
		parts[p.Index()] = p

		if store != nil {
			if err := store.Save(keystore.NewRecord(p, res.Set, res.SessionID)); err != nil {
				return err
			}
			fmt.Fprintf(out, "  backup written to %s\n", cfg.BackupDir)
		}
	}

	return check(g, cfg.Threshold, coord.Participants(), parts, secretKey, groupKey, opts.Message, out)
}

// keygen returns the initial shares and, for dealer keys, the secret.
func keygen(g group.Group, cfg config.Config, dealer bool) ([]*frost.KeyShare, group.Scalar, error) {
	if !dealer && cfg.Threshold >= frost.MinThreshold {
		f, err := frost.New(g, cfg.Threshold, cfg.Participants)
		if err != nil {
			return nil, nil, err
		}
		shares, _, err := f.KeyGen(rand.Reader)
		return shares, nil, err
	}
	secret, err := g.RandomScalar(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	shares, _, err := frost.Deal(g, rand.Reader, secret, cfg.Threshold, cfg.Participants)
	return shares, secret, err
}

func register(coord *coordinator.Coordinator, tr transport.Transport, p enroll.Participant, log zerolog.Logger) error {
	h, err := peer.NewHolder(p, tr, peer.WithLogger(log))
	if err != nil {
		return err
	}
	return coord.Register(h)
}

// lastIndices returns the t highest indices, ascending, so newly enrolled
// holders take part in later enrollments.
func lastIndices(parts map[int]enroll.Participant, t int) []int {
	indices := make([]int, 0, len(parts))
	for i := range parts {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices[len(indices)-t:]
}

func check(g group.Group, t, n int, parts map[int]enroll.Participant, secretKey group.Scalar, groupKey group.Point, message string, out io.Writer) error {
	set := lastIndices(parts, t)
	chosen := make([]enroll.Participant, 0, t)
	for _, i := range set {
		chosen = append(chosen, parts[i])
	}

	secret, err := enroll.Reconstruct(chosen...)
	if err != nil {
		return err
	}
	if !g.NewPoint().ScalarMult(secret, g.Generator()).Equal(groupKey) {
		return errors.Wrapf(enroll.ErrInconsistentShare, "shares %v do not reconstruct the group key", set)
	}
	if secretKey != nil && !secret.Equal(secretKey) {
		return errors.Wrapf(enroll.ErrInconsistentShare, "shares %v do not reconstruct the dealt secret", set)
	}
	fmt.Fprintf(out, "Reconstruction from %v matches the group key\n", set)

	if t < frost.MinThreshold {
		return nil
	}
	f, err := frost.New(g, t, n)
	if err != nil {
		return err
	}
	keyShares := make([]*frost.KeyShare, 0, t)
	for _, p := range chosen {
		keyShares = append(keyShares, p.KeyShare())
	}
	sig, err := f.Sign(rand.Reader, []byte(message), keyShares)
	if err != nil {
		return errors.Wrap(err, "sign")
	}
	if !f.Verify([]byte(message), sig, groupKey) {
		return errors.New("signature from enrolled shares does not verify")
	}
	fmt.Fprintf(out, "Signature by %v verifies under the group key\n", set)
	return nil
}
