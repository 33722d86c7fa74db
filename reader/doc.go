// Package reader decodes Paradox table, index and blob files.
//
// A directory of table files is a schema. A Catalog is rooted at a
// directory: the root is the default schema when it holds tables, and each
// sub-directory holding tables is another schema named after it.
//
// # Basic Usage
//
// Opening a catalog and scanning a table:
//
//	catalog, err := reader.OpenCatalog("/data/px", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	table, err := catalog.Table("", "areacodes")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rows, err := table.Scan()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rows.Close()
//	for rows.Next() {
//	    fmt.Println(rows.Values())
//	}
//	if err := rows.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Schema Cache
//
// Decoded table headers are cached per schema and revalidated against the
// file modification time on every lookup. A Watcher additionally drops
// entries as soon as fsnotify reports a change:
//
//	w, err := reader.WatchCatalog(catalog)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
// # Large Objects
//
// Memo, blob and graphic fields decode to LOB descriptors. Short payloads
// are stored inline in the record; longer ones are read from the .MB file
// when the value is resolved. Options.LOBCache keeps resolved payloads in
// a bounded freecache.
//
// # Character Sets
//
// Alpha fields are decoded with the code page declared in the table header.
// Options.Charset overrides it for every table, accepting names such as
// cp1252, windows-1251, 437 or utf-8.
package reader
