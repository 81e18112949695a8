/*
Package log provides structured logging for the watchdog using zerolog.

The package keeps one global zerolog.Logger, configured once from the
command line via Init, and hands out child loggers that carry a component
name and, where relevant, the managed node:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithNode("reconciler", "avalanche")
	logger.Info().Str("container_id", id).Msg("container restarted")

Child loggers copy the global logger at creation time, so components build
them in their constructors, after Init has run.

Console output (the default) is meant for operators tailing the container;
JSON output is meant for log shippers.
*/
package log
