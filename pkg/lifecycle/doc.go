// Package lifecycle holds retry helpers shared by the storage adapters.
//
// Connectors whose change feeds poll or watch an external resource back
// off between failed attempts:
//
//	b := lifecycle.NewBackoff(100*time.Millisecond, 5*time.Second)
//	for {
//	    if err := poll(ctx); err == nil {
//	        b.Reset()
//	        continue
//	    }
//	    if err := b.Wait(ctx); err != nil {
//	        return // ctx done
//	    }
//	}
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package lifecycle
