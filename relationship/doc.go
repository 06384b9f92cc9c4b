// Package relationship declares and executes one-to-many relationships
// between resource types.
//
// A relationship is declared once, at startup, through a [Declarator]:
//
//	decl := relationship.NewDeclarator(resources, relationship.WithLogger(logger))
//	repos, err := decl.Define("User", "Repository", relationship.Options{
//	    As:  "repositories",
//	    Via: "user_id",
//	})
//
// Declaring it adds a foreign array ("repository_ids") to the parent and a
// foreign key ("user_id") to the child. The returned [Relationship] creates
// children and keeps both sides consistent:
//
//	repo, err := repos.CreateChild(ctx, "christian", resource.Document{"_id": "issues", "name": "issues"})
//	all, err := repos.Children(ctx, "christian")
//
// # Consistency
//
// The child is written before the parent. A conflict on the child leaves the
// parent untouched. Writes to one parent's array are serialized within the
// process by striped mutexes; engines implementing [resource.Appender] also
// append atomically across processes. Engine errors are returned unchanged.
package relationship
