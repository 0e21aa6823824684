// Package pid binds stable, store-generated identifiers to the current URI of
// a resource.
//
// # Core Concepts
//
//  1. UUID: the persistent identifier. It is generated when a URI is first
//     registered and never changes for that binding.
//
//  2. URI: the external-facing location the identifier resolves to. A URI is
//     bound to at most one live identifier at a time. Renames are modeled by
//     the caller as Delete followed by Add.
//
//  3. Store: the persistence contract. Implementations live in subpackages
//     (memstore, gormstore, dynamostore) and enforce uniqueness of both the
//     identifier and the URI themselves.
//
//  4. Service: the entry point for callers. It validates input and applies the
//     identifier policy: Add always discards a caller-supplied identifier,
//     while Import keeps it for migrations from another system.
//
// # Usage Examples
//
//	svc := pid.NewService(memstore.New(), logger)
//
//	p, err := svc.Add(ctx, pid.Pid{URI: "https://workspace.example.com/iri/collections/789"})
//	if errors.Is(err, pid.ErrDuplicateURI) {
//	    // already registered
//	}
//
//	found, err := svc.FindByURI(ctx, p.URI)
//	err = svc.Delete(ctx, found.ID)
//
// # Database Integration
//
// UUID implements sql.Scanner and driver.Valuer, so it can be used directly as
// a column type:
//
//	type pidRow struct {
//	    ID  pid.UUID `gorm:"type:uuid;primaryKey"`
//	    URI string   `gorm:"uniqueIndex"`
//	}
package pid
