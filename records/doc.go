/*
Package records encodes user profiles, email guards and dashboard statistics
as single-table rows and decodes them back, filling defaults for attributes
older writers left out.
*/
package records
