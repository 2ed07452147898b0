package declarative

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"

	"github.com/agentflow/kernel/workflow"
)

// Watcher rebuilds a Workflow from a YAML file every time that file changes
// on disk, handing each rebuilt graph to OnReload. It is meant for local
// iteration on a declarative spec, not production hot-swap of a running
// Runner (an in-flight run keeps the Workflow it started with).
type Watcher struct {
	path     string
	factory  *WorkflowFactory
	fsw      *fsnotify.Watcher
	OnReload func(*workflow.Workflow)
	OnError  func(error)
}

// Watch starts watching path for writes and rebuilds the workflow on each
// one via factory. Call Close to stop watching.
func Watch(path string, factory *WorkflowFactory, onReload func(*workflow.Workflow)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &DeclarativeLoaderError{Path: path, Err: err}
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, &DeclarativeLoaderError{Path: path, Err: err}
	}

	w := &Watcher{
		path:     path,
		factory:  factory,
		fsw:      fsw,
		OnReload: onReload,
		OnError:  func(error) {},
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			wf, err := w.factory.CreateWorkflowFromYAMLPath(w.path)
			if err != nil {
				slog.Warn("declarative: reload failed", slog.String("path", w.path), slog.Any("error", err))
				if w.OnError != nil {
					w.OnError(err)
				}
				continue
			}
			slog.Info("declarative: reloaded workflow", slog.String("path", w.path), slog.String("name", wf.Name()))
			if w.OnReload != nil {
				w.OnReload(wf)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.OnError != nil {
				w.OnError(err)
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
