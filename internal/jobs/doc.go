// package jobs implements the translation job lifecycle: planning a document
// into chunks, fanning them out to bounded concurrent workers, collecting
// completion signals, and finalizing the rebuilt document.
//
// Coordination is deliberately storage-centric. Workers never talk to each
// other; they apply atomic counter increments and the worker whose increment
// settles the final chunk publishes the job's completion signal.
package jobs
