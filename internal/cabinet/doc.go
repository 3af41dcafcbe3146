// Package cabinet holds the archive side of the binder: the codec that packs
// files into cabinets, the content-addressed cabinet cache and the delta
// codec used by patch builds.
package cabinet
