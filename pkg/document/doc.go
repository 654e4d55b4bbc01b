// Package document defines the layout file format and its translation to
// and from the relaxation solver.
//
// A layout document lists entities (circle centres with a radius) and
// constraints between them:
//
//	{
//	  "schema": "gearlayout/1",
//	  "units": "mm",
//	  "entities": [
//	    {"id": 1, "at": [0, 0], "radius": 20},
//	    {"id": 2, "at": [50, 0], "radius": 12}
//	  ],
//	  "constraints": [
//	    {"id": 1, "type": "fixed", "entity": 1},
//	    {"id": 2, "type": "distance", "between": [1, 2], "distance": 32}
//	  ]
//	}
//
// Documents may be written as JSON, YAML or TOML; the codec is picked from
// the file extension (see [FormatFromPath]).
//
// [Solve] validates a document, builds a [solver.System], runs it and returns
// a [Solution]: the solver status, diagnostics and one [ResolvedEntity] per
// entity in ID order.
package document
