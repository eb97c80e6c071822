// Package domainvalues serves cascading domain data over net/http in the
// shape the option provider consumes:
//
//	GET /domain/{category}?parentCode=CA&q=on&limit=20
//	{"data": [{"code": "ON", "displayText": "Ontario", "parentCode": "CA"}]}
//
// Values come from any options.Source, so the same component can front an
// in-memory catalog or a SQL table.
package domainvalues
