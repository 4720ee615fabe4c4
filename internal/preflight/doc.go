// Package preflight provides readiness checks for the filesystem paths and
// remote endpoint that agrisync depends on.
//
// These checks run in two contexts:
//   - The daemon runner calls RunAll at startup and refuses to continue when
//     a directory check fails. A failed remote check is only logged, since
//     starting offline is expected.
//   - The CLI "agrisync status" command uses individual check functions
//     (CheckRemoteFromConfig, CheckDirectoryAccess) to display health.
package preflight
