// Package bootstrap assembles a reportflow engine from config.Config.
//
// New registers the built-in filters (redact, encode_json, decode_json,
// gzip, gunzip and, with encryption enabled, encrypt and decrypt). Start
// initializes OTLP tracing and metrics when enabled, connects the Redis and
// Kafka sinks, creates the executor and builds the root chain from the
// configured chain directories. Shutdown drains in-flight runs before
// closing the sinks.
//
//	app, err := bootstrap.New(cfg)
//	if err != nil {
//	    return err
//	}
//	return app.RunTask(ctx, func(ctx context.Context, app *bootstrap.App) error {
//	    res := app.Execute(ctx, reports)
//	    return res.Err
//	})
package bootstrap
