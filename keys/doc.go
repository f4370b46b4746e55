/*
Package keys maps logical identifiers to the physical keys of the single table.

	UserProfile       PK=USER#<id>         SK=PROFILE          GSI1PK=EMAIL#<email> GSI1SK=USER#<id>
	Email guard       PK=EMAIL#<email>     SK=UNIQUE
	Per-user stats    PK=USER#<id>         SK=DASHBOARD#STATS
	Global stats      PK=DASHBOARD#GLOBAL  SK=STATS

Row encoders in package records and both stores build on these functions;
nothing else assembles or parses physical keys.
*/
package keys
