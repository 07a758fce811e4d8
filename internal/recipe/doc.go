// Package recipe loads package definitions written in Lua.
//
// A recipe is a file <recipes>/<name>.lua that assigns a global "parts"
// table:
//
//	parts = {
//	  name = "redis",
//	  version = "2.8.9",
//	  description = "Advanced key-value store",
//	  source_url = "http://download.redis.io/releases/redis-2.8.9.tar.gz",
//	  source_sha1 = "...",
//	  source_filetype = "tar.gz",
//	  depends_on = { "tcl" },
//	  tips = "Start the server with: parts start redis",
//
//	  compile = { { "make" } },
//	  install = function(p)
//	    return { { "make", "PREFIX=" .. p.prefix, "install" } }
//	  end,
//	  start = function(p) return { { p.bin .. "/redis-server", p.etc .. "/redis.conf" } } end,
//	  stop = { { "pkill", "redis-server" } },
//	  process_name = "redis-server",
//	}
//
// Hooks (compile, install, post_install, post_uninstall, start, stop) are a
// list of argv lists, a single argv list, or a function of the package
// table returning either. Commands are run without a shell. Hook functions
// are evaluated when the hook runs, so p.dependency(name) sees the
// registry as it is at that moment.
//
// Recipes run in a sandbox without os, io, require, load or debug, with the
// read-only platform table from the platform package available.
package recipe
