// Package log holds the structured logging attributes shared by the runner,
// channels and journals, so every call site names its keys the same way.
package log

import "log/slog"

func RunnerID(id string) slog.Attr {
	return slog.String("runner_id", id)
}

func FlowName(name string) slog.Attr {
	return slog.String("flow", name)
}

func Step(name string) slog.Attr {
	return slog.String("step", name)
}

func Target(name string) slog.Attr {
	return slog.String("target", name)
}

func Channel(key string) slog.Attr {
	return slog.String("channel", key)
}

func Phase[T ~string](phase T) slog.Attr {
	return slog.String("phase", string(phase))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
