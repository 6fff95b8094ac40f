package rules

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// WatchReload reloads the corpus from path whenever SIGHUP is received
// or the file is written, and logs the outcome. It runs until ctx is
// cancelled. A failed reload logs the error and leaves the previous
// snapshot in effect — readers never fall back to an empty rule set.
func WatchReload(ctx context.Context, engine *Engine, path string, log *logrus.Entry) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("rule corpus file watch unavailable; SIGHUP reload still active")
		watchSignalOnly(ctx, engine, path, log, sighup)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		log.WithError(err).Warn("cannot watch rule corpus file; SIGHUP reload still active")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
			reload(engine, path, log, "sighup")
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				reload(engine, path, log, "file-watch")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("rule corpus watcher error")
		}
	}
}

func watchSignalOnly(ctx context.Context, engine *Engine, path string, log *logrus.Entry, sighup chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
			reload(engine, path, log, "sighup")
		}
	}
}

func reload(engine *Engine, path string, log *logrus.Entry, trigger string) {
	if err := engine.Load(path); err != nil {
		log.WithError(err).WithField("trigger", trigger).Error("rule corpus reload failed; previous corpus remains active")
		return
	}
	log.WithField("trigger", trigger).WithField("rule_count", engine.RuleCount()).Info("rule corpus reloaded")
}
