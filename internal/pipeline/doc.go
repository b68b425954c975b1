// Package pipeline generates thumbnails for batches of images on a fixed
// pool of workers.
//
// A Task is submitted with an ItemFunc that receives one Outcome per item
// and an optional CompleteFunc. Work is dispatched in priority order and
// tasks can be cancelled at any time; a cancelled task never delivers
// another outcome and never completes.
//
// Each item is bounded by a per-item timeout. When a decode overruns, the
// item is reported as failed with ErrTimeout straight away, while the
// worker stays occupied until the codec call returns so the number of
// concurrent decodes never exceeds the pool size.
package pipeline
