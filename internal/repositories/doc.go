// package repositories provides persistence layer implementations for all model types.
//
// Each repository implements models.Repository[T] for a specific entity type,
// handling CRUD operations and sequence generation. JobRepository additionally
// owns the atomic counter increments that chunk workers use to coordinate.
package repositories
