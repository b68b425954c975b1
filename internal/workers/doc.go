/*
Package workers sizes the thumbnail worker pool.

The pipeline goes through [Resolve], which honours an explicit configured
count (clamped to 1..16) and otherwise falls back to [Auto]:

	pool := pipeline.New(codec, pipeline.Options{Workers: workers.Resolve(cfg.Workers)})

Auto gives 1.5 workers per GOMAXPROCS, at most 8. THUMBNAIL_WORKERS
overrides it when set to a positive integer.
*/
package workers
