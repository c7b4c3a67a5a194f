// Package coral exposes the type metadata of a separately hosted managed
// runtime to Go code.
//
// # Overview
//
// A HostInstance wraps a Backend, the call interface into the host. It hands
// out ReflectionType descriptors, one per managed type identity, and is the
// only place descriptors are created. A descriptor answers navigation
// queries (base type, fields, methods) from a private cache or with a
// single round trip to the host, and forwards assignability questions to the
// host every time because interface implementation and variance are not
// visible from the base chain.
//
// Type identity is the assembly-qualified name. Descriptors obtained through
// different paths for the same identity are the same descriptor.
//
// # Example Usage
//
//	host, err := coral.Open(backend, coral.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer host.Close()
//
//	animal, err := host.GetType(ctx, "App.Animal")
//	if err != nil {
//		return err
//	}
//
//	fields, err := animal.GetFields(ctx)   // one round trip
//	fields, err = animal.GetFields(ctx)    // cached
//
//	base, err := animal.GetBaseType(ctx)   // System.Object
//	root, err := base.GetBaseType(ctx)     // nil, nil: no base type
//
//	dog, err := host.GetType(ctx, "App.Dog")
//	ok, err := animal.IsAssignableFrom(ctx, dog) // true
//
// # Errors
//
// Every failure wraps exactly one of ErrHostUnavailable (the connection is
// closed or unreachable) or ErrUnresolvedType (the host has no usable
// metadata for the identity). Failed round trips are not cached. After
// Close, every descriptor operation fails with ErrHostUnavailable, including
// ones that would have been cache hits.
//
// # Concurrency
//
// HostInstance and ReflectionType are safe for concurrent use. Each cache
// slot is filled at most once even under concurrent first use. Calls into
// the backend are not serialized here; the backend owns that.
package coral
