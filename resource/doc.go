// Package resource defines resource types, their instances and the storage
// engine contract they are persisted through.
//
// # Definitions
//
// A [Definition] is a named resource type with an ordered property schema.
// Definitions are registered in an explicit [Registry]:
//
//	reg := resource.NewRegistry()
//	users := reg.MustDefine("User", engine,
//	    resource.Property{Name: "name", Type: resource.String, Required: true},
//	)
//
// # Engines
//
// Every backing store implements [Engine] (Get, Create, Save, Destroy, Find).
// Engines that can append to an array field atomically also implement
// [Appender]. Nothing above the engine depends on its wire format.
//
// # Errors
//
// Failures carry a machine-readable [Kind]; use [KindOf] to branch:
//
//   - [ErrNotFound] - record doesn't exist (kind "not_found")
//   - [ErrConflict] - identifier already taken on create (kind "conflict")
//   - [ErrValidation] - attributes violate the schema (kind "validation")
//   - anything an engine returns unchanged (kind "adapter")
package resource
