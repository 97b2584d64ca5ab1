// Package resolve implements recursive dependency resolution.
//
// Starting from a manifest, the resolver fetches every declared node into a
// workspace, checks the fetched tree for a nested manifest, resolves that
// manifest first and then runs the node's build action, so a dependency is
// always built before anything depending on it. Declarations are processed
// one at a time, in declaration order.
//
// Under the best-effort policy a failing node (fetch, nested manifest,
// nested resolution or build) is recorded and resolution moves on to the
// next sibling; dependents are still built. Under the strict policy the
// first failure stops the run.
//
// Every call receives absolute paths, so the process working directory is
// never consulted or changed.
//
// Example usage:
//
//	r := resolve.New(resolve.Options{
//	    Fetcher: fetch.New(vcs.NewGitVCS()),
//	    Builder: build.NewBuilder(build.Options{}),
//	    Dedupe:  true,
//	})
//	outcomes := r.Resolve(ctx, m, workspace)
//	for _, o := range resolve.Failed(outcomes) {
//	    fmt.Println(o.Node, o.Err)
//	}
package resolve
