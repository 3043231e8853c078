// Package schema implements the object-schema type system used to describe
// and validate command parameters, command results, and state property values.
//
// A schema is a tree of typed nodes parsed from a declarative JSON document:
//
//	{
//	  "type": "object",
//	  "properties": {
//	    "height":    {"type": "integer", "minimum": 0, "maximum": 100},
//	    "_jumpType": {"type": "string", "enum": ["_withKick", "_withoutKick"]}
//	  },
//	  "required": ["height"]
//	}
//
// # Key Types
//
//   - Schema: an immutable schema node; the declared type never changes after
//     Parse and child nodes are exclusively owned by their parent
//   - Type: the declared value type (integer, number, boolean, string,
//     object, array)
//   - ValidationError: a single violation with a dotted property path and a
//     stable machine-readable code
//
// # Usage
//
//	s, err := schema.ParseJSON(defJSON)
//	if err != nil {
//	    return err
//	}
//	if err := s.Validate(payload); err != nil {
//	    var verr *schema.ValidationError
//	    if errors.As(err, &verr) {
//	        log.Warn("rejected", "path", verr.Path, "code", verr.Code)
//	    }
//	}
//
// Validation is total and side-effect-free: it never mutates the value, never
// blocks, and reports the first violation found. This allows it to run
// synchronously on every inbound command payload.
//
// # Thread Safety
//
// Schema nodes are immutable after Parse and safe for concurrent use.
package schema
