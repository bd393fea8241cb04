// Package resolver answers effective-value queries over one unit's tree: for a
// leaf and a persistent channel it finds the value in force in the
// governing context. Queries are single-direction and never merge values.
package resolver
