package app

import (
	"sort"

	"github.com/specialistvlad/pkgbind/internal/extension"
	"github.com/specialistvlad/pkgbind/modules/customtable"
	"github.com/specialistvlad/pkgbind/modules/envlayout"
)

// coreModules are the built-in extensions, by name.
var coreModules = map[string]extension.Module{
	"customtable": &customtable.Module{},
	"envlayout":   &envlayout.Module{},
}

// selectModules returns the named built-in extensions, or all of them in
// name order when names is empty.
func selectModules(names []string) []extension.Module {
	if len(names) == 0 {
		for name := range coreModules {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	mods := make([]extension.Module, 0, len(names))
	for _, name := range names {
		if mod, ok := coreModules[name]; ok {
			mods = append(mods, mod)
		}
	}
	return mods
}
