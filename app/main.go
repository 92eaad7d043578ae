package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/fileutils"
	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/spam-bayes/app/checker"
	"github.com/umputun/spam-bayes/app/storage"
	"github.com/umputun/spam-bayes/app/storage/engine"
	"github.com/umputun/spam-bayes/app/webapi"
	"github.com/umputun/spam-bayes/lib/bayes"
	"github.com/umputun/spam-bayes/lib/scorecache"
	"github.com/umputun/spam-bayes/lib/spamcheck"
)

type options struct {
	Message         string `long:"message" env:"MESSAGE" description:"message to classify"`
	MessageFromFile string `long:"message-from-file" env:"MESSAGE_FROM_FILE" description:"file with the message to classify, one part per line"`
	FromModel       string `long:"from-model" env:"FROM_MODEL" description:"pre-trained model file (default: resources/model.json)"`

	Cache struct {
		Type    string        `long:"type" env:"TYPE" default:"json" choice:"json" choice:"db" choice:"redis" description:"score cache backend"`
		File    string        `long:"file" env:"FILE" default:"resources/cache.json" description:"json cache file"`
		DB      string        `long:"db" env:"DB" default:"resources/cache.db" description:"cache database, sqlite file or postgres url"`
		Redis   string        `long:"redis" env:"REDIS" default:"redis://localhost:6379/0" description:"cache redis url"`
		GID     string        `long:"gid" env:"GID" default:"" description:"cache namespace in the database or redis"`
		Timeout time.Duration `long:"timeout" env:"TIMEOUT" default:"5s" description:"database or redis call timeout"`
	} `group:"cache" namespace:"cache" env-namespace:"CACHE"`

	Workers  int           `long:"workers" env:"WORKERS" default:"0" description:"parallel workers for message from file, 0 - number of CPUs"`
	ModelTTL time.Duration `long:"model-ttl" env:"MODEL_TTL" default:"0s" description:"how long the loaded model is kept in memory, 0 - forever"`

	Logger struct {
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable verdict rotated logs"`
		FileName   string `long:"file" env:"FILE" default:"spam-bayes.log" description:"location of verdict log"`
		MaxSize    string `long:"max-size" env:"MAX_SIZE" default:"100M" description:"maximum size before it gets rotated"`
		MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" default:"10" description:"maximum number of old log files to retain"`
	} `group:"logger" namespace:"logger" env-namespace:"LOGGER"`

	CreateModel createModelCmd `command:"create-model-from-dataset" description:"create a new model from the dataset and write it to the model file"`
	CleanCache  struct{}       `command:"clean-cache" description:"clean the score cache"`
	Server      serverCmd      `command:"server" description:"run web API server"`

	Dbg bool `long:"dbg" env:"DEBUG" description:"debug mode"`
}

type createModelCmd struct {
	DatasetPath string `long:"dataset-path" env:"DATASET_PATH" required:"true" description:"dataset file, label<TAB>message per line"`
	ModelPath   string `long:"model-path" env:"MODEL_PATH" required:"true" description:"model file to create"`
}

type serverCmd struct {
	Listen      string  `long:"listen" env:"LISTEN" default:":8080" description:"listen address"`
	AuthPasswd  string  `long:"auth-passwd" env:"AUTH_PASSWD" default:"" description:"basic auth password for user spam-bayes"`
	RateLimit   float64 `long:"rate-limit" env:"RATE_LIMIT" default:"50" description:"max requests per second per client"`
	HistorySize int     `long:"history-size" env:"HISTORY_SIZE" default:"100" description:"number of recent checks kept for /history"`
	WatchModel  bool    `long:"watch-model" env:"WATCH_MODEL" description:"reload the model when the model file changes"`
}

const defaultModelPath = "resources/model.json"

var revision = "local"

func main() {
	fmt.Printf("spam-bayes %s\n", revision)
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	p.SubcommandsOptional = true
	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			log.Printf("[ERROR] cli error: %v", err)
		}
		os.Exit(2)
	}

	setupLog(opts.Dbg, opts.Server.AuthPasswd)
	log.Printf("[DEBUG] options: %+v", opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// catch signal and invoke graceful termination
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()

	cmd := ""
	if p.Active != nil {
		cmd = p.Active.Name
	}
	if err := execute(ctx, os.Stdout, cmd, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// execute runs the command, empty cmd means classification of a message
func execute(ctx context.Context, out io.Writer, cmd string, opts options) (err error) {
	switch cmd {
	case "create-model-from-dataset":
		return createModel(opts.CreateModel)
	case "clean-cache":
		return cleanCache(ctx, opts)
	}

	if cmd == "" {
		if opts.Message == "" && opts.MessageFromFile == "" {
			return errors.New("either --message or --message-from-file is required")
		}
		if opts.Message != "" && opts.MessageFromFile != "" {
			return errors.New("--message and --message-from-file are mutually exclusive")
		}
	}

	scores, closeScores, err := makeScoreCache(ctx, opts)
	if err != nil {
		return fmt.Errorf("can't make score cache, %w", err)
	}
	defer func() {
		if cerr := closeScores(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("can't close score cache, %w", cerr)).ErrorOrNil()
		}
	}()

	modelPath, err := modelFile(opts.FromModel)
	if err != nil {
		return err
	}

	verdictWr, err := makeVerdictLogWriter(opts)
	if err != nil {
		return fmt.Errorf("can't make verdict log writer, %w", err)
	}
	defer func() {
		if cerr := verdictWr.Close(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("can't close verdict log, %w", cerr)).ErrorOrNil()
		}
	}()

	chk := verdictChecker{
		Checker: checker.New(scores, checker.Config{ModelPath: modelPath, Workers: opts.Workers, ModelTTL: opts.ModelTTL}),
		logFn:   makeVerdictLogger(verdictWr),
	}

	switch {
	case cmd == "server":
		return runServer(ctx, opts.Server, chk)
	case opts.Message != "":
		resp, cerr := chk.Check(opts.Message)
		if cerr != nil {
			return fmt.Errorf("can't classify message, %w", cerr)
		}
		fmt.Fprintf(out, "The message - %q, is indeed %s!\n", opts.Message, verdict(resp.Spam))
		return nil
	default:
		fh, oerr := os.Open(opts.MessageFromFile)
		if oerr != nil {
			return fmt.Errorf("can't open message file, %w", oerr)
		}
		defer fh.Close()
		res, cerr := chk.CheckLines(ctx, fh)
		if cerr != nil {
			return fmt.Errorf("can't classify message from %s, %w", opts.MessageFromFile, cerr)
		}
		chk.logFn(spamcheck.NewResponse(opts.MessageFromFile, res, false))
		fmt.Fprintf(out, "The message from file - %q, is indeed %s!\n", opts.MessageFromFile, verdict(res.IsSpam()))
		return nil
	}
}

func runServer(ctx context.Context, opts serverCmd, chk verdictChecker) error {
	if opts.WatchModel {
		go func() {
			if err := chk.Watch(ctx); err != nil {
				log.Printf("[WARN] can't watch model file, %v", err)
			}
		}()
	}

	srv := webapi.NewServer(webapi.Config{
		Version:    revision,
		ListenAddr: opts.Listen,
		Checker:    chk,
		History:    spamcheck.NewHistory(opts.HistorySize),
		AuthPasswd: opts.AuthPasswd,
		RateLimit:  opts.RateLimit,
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("web API server failed, %w", err)
	}
	return nil
}

// createModel trains a new model from the dataset file and writes it to the model file.
// The model file must not exist, a partially written file is removed on failure.
func createModel(opts createModelCmd) (err error) {
	if !fileutils.IsFile(opts.DatasetPath) {
		return fmt.Errorf("the specified dataset file %q does not exist", opts.DatasetPath)
	}
	if fileutils.IsFile(opts.ModelPath) {
		return fmt.Errorf("the specified model file %q already exists", opts.ModelPath)
	}

	dataset, err := os.Open(opts.DatasetPath)
	if err != nil {
		return fmt.Errorf("%w: can't open dataset, %w", spamcheck.ErrIO, err)
	}
	defer dataset.Close()

	if dir := filepath.Dir(opts.ModelPath); dir != "" {
		if err = os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("%w: can't make model directory, %w", spamcheck.ErrIO, err)
		}
	}
	model, err := os.Create(opts.ModelPath)
	if err != nil {
		return fmt.Errorf("%w: can't create model file, %w", spamcheck.ErrIO, err)
	}
	defer func() {
		if cerr := model.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: can't close model file, %w", spamcheck.ErrIO, cerr)
		}
		if err != nil {
			if rerr := os.Remove(opts.ModelPath); rerr != nil {
				log.Printf("[WARN] can't remove incomplete model %s, %v", opts.ModelPath, rerr)
			}
		}
	}()

	res, err := bayes.New().CreateModelFromDataset(dataset, model)
	if err != nil {
		return fmt.Errorf("can't create model from %s, %w", opts.DatasetPath, err)
	}
	log.Printf("[INFO] model %s created from %s, ham: %d, spam: %d, skipped: %d",
		opts.ModelPath, opts.DatasetPath, res.HamSamples, res.SpamSamples, res.Skipped)
	return nil
}

// modelFile returns the model path to use. An explicitly set model must exist.
func modelFile(fromModel string) (string, error) {
	if fromModel == "" {
		return defaultModelPath, nil
	}
	if !fileutils.IsFile(fromModel) {
		return "", fmt.Errorf("the specified model file %q does not exist", fromModel)
	}
	return fromModel, nil
}

// cleanCache drops all cached scores. The json cache file is removed without loading,
// so a corrupt file can be cleaned too.
func cleanCache(ctx context.Context, opts options) (err error) {
	if opts.Cache.Type == "json" || opts.Cache.Type == "" {
		if err = scorecache.Remove(opts.Cache.File); err != nil {
			return fmt.Errorf("can't clean cache, %w", err)
		}
		log.Printf("[INFO] cache %s cleaned", opts.Cache.File)
		return nil
	}

	scores, closeScores, err := makeScoreCache(ctx, opts)
	if err != nil {
		return fmt.Errorf("can't make score cache, %w", err)
	}
	defer func() {
		if cerr := closeScores(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("can't close score cache, %w", cerr)).ErrorOrNil()
		}
	}()
	if err = scores.Clear(); err != nil {
		return fmt.Errorf("can't clean cache, %w", err)
	}
	log.Printf("[INFO] %s cache cleaned", opts.Cache.Type)
	return nil
}

// makeScoreCache makes the score cache backend chosen by options, returns it with its close function
func makeScoreCache(ctx context.Context, opts options) (checker.ScoreCache, func() error, error) {
	switch opts.Cache.Type {
	case "db":
		db, err := engine.New(ctx, opts.Cache.DB, opts.Cache.GID)
		if err != nil {
			return nil, nil, fmt.Errorf("can't open cache database, %w", err)
		}
		scores, err := storage.NewScores(ctx, db, opts.Cache.Timeout)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("can't make scores storage, %w", err)
		}
		log.Printf("[DEBUG] db score cache %s, type: %s, gid: %q", opts.Cache.DB, db.Type(), db.GID())
		return scores, db.Close, nil
	case "redis":
		scores, err := storage.NewRedisScores(ctx, opts.Cache.Redis, opts.Cache.GID, opts.Cache.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("can't make redis scores storage, %w", err)
		}
		log.Printf("[DEBUG] redis score cache, gid: %q", opts.Cache.GID)
		return scores, scores.Close, nil
	case "json", "":
		c, err := scorecache.Open(opts.Cache.File)
		if err != nil {
			return nil, nil, fmt.Errorf("can't open cache file, %w", err)
		}
		log.Printf("[DEBUG] json score cache %s, entries: %d", c.Path(), c.Len())
		return c, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unsupported cache type %q", opts.Cache.Type)
}

// verdictChecker reports every successful single message check to logFn
type verdictChecker struct {
	*checker.Checker
	logFn func(resp spamcheck.Response)
}

// Check calls the underlying checker and logs the verdict
func (v verdictChecker) Check(msg string) (spamcheck.Response, error) {
	resp, err := v.Checker.Check(msg)
	if err != nil {
		return resp, err
	}
	v.logFn(resp)
	return resp, nil
}

func verdict(spam bool) string {
	if spam {
		return "spam"
	}
	return "ham"
}

// makeVerdictLogger makes a function writing verdicts as json lines to the provided writer
func makeVerdictLogger(wr io.Writer) func(resp spamcheck.Response) {
	return func(resp spamcheck.Response) {
		text := strings.TrimSpace(strings.ReplaceAll(resp.Msg, "\n", " "))
		log.Printf("[INFO] %s detected, %s", verdict(resp.Spam), text)
		log.Printf("[DEBUG] verdict: %s", resp.String())
		m := struct {
			TimeStamp string  `json:"ts"`
			Text      string  `json:"text"`
			Spam      bool    `json:"spam"`
			SpamScore float64 `json:"spam_score"`
			HamScore  float64 `json:"ham_score"`
			Cached    bool    `json:"cached"`
		}{
			TimeStamp: time.Now().In(time.Local).Format(time.RFC3339),
			Text:      text,
			Spam:      resp.Spam,
			SpamScore: resp.SpamScore,
			HamScore:  resp.HamScore,
			Cached:    resp.Cached,
		}
		line, err := json.Marshal(&m)
		if err != nil {
			log.Printf("[WARN] can't marshal json, %v", err)
			return
		}
		if _, err := wr.Write(append(line, '\n')); err != nil {
			log.Printf("[WARN] can't write to log, %v", err)
		}
	}
}

// makeVerdictLogWriter creates verdict log writer to keep reports about checked messages
// it parses options and makes lumberjack logger with rotation
func makeVerdictLogWriter(opts options) (accessLog io.WriteCloser, err error) {
	if !opts.Logger.Enabled {
		return nopWriteCloser{io.Discard}, nil
	}

	maxSize, perr := sizeParse(opts.Logger.MaxSize)
	if perr != nil {
		return nil, fmt.Errorf("can't parse logger MaxSize: %w", perr)
	}
	maxSize /= 1048576

	log.Printf("[INFO] logger enabled for %s, max size %dM", opts.Logger.FileName, maxSize)
	return &lumberjack.Logger{
		Filename:   opts.Logger.FileName,
		MaxSize:    int(maxSize), // in MB
		MaxBackups: opts.Logger.MaxBackups,
		Compress:   true,
		LocalTime:  true,
	}, nil
}

// sizeMultipliers maps a case-insensitive size suffix to its multiplier
var sizeMultipliers = map[byte]uint64{'k': 1 << 10, 'm': 1 << 20, 'g': 1 << 30, 't': 1 << 40}

// sizeParse parses a byte size like "512", "64k" or "100M", suffixes are powers of 1024
func sizeParse(inp string) (uint64, error) {
	num, mult := strings.TrimSpace(inp), uint64(1)
	if num == "" {
		return 0, errors.New("empty size")
	}
	if m, ok := sizeMultipliers[num[len(num)-1]|0x20]; ok {
		num, mult = num[:len(num)-1], m
	}
	val, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("can't parse size %q: %w", inp, err)
	}
	if val > math.MaxUint64/mult {
		return 0, fmt.Errorf("size %q overflows", inp)
	}
	return val * mult, nil
}

type nopWriteCloser struct{ io.Writer }

func (n nopWriteCloser) Close() error { return nil }

// setupLog configures lgr and the std logger. Debug mode adds caller info,
// non-empty secrets are masked in every log line.
func setupLog(dbg bool, secrets ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError, lgr.Map(logColors())}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.CallerFile, lgr.CallerFunc)
	}
	if masked := slices.DeleteFunc(slices.Clone(secrets), func(s string) bool { return s == "" }); len(masked) > 0 {
		logOpts = append(logOpts, lgr.Secret(masked...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}

// logColors highlights levels by severity, verdict lines are INFO
func logColors() lgr.Mapper {
	paint := func(attrs ...color.Attribute) func(string) string {
		c := color.New(attrs...)
		return func(s string) string { return c.Sprint(s) }
	}
	return lgr.Mapper{
		ErrorFunc:  paint(color.FgHiRed, color.Bold),
		WarnFunc:   paint(color.FgRed),
		InfoFunc:   paint(color.FgGreen),
		DebugFunc:  paint(color.FgHiBlack),
		CallerFunc: paint(color.FgBlue),
		TimeFunc:   paint(color.FgCyan),
	}
}
