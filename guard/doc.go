/*
Package guard turns uniqueness requirements into DynamoDB condition
expressions and classifies the failures they produce.

A user create writes the profile row and its email guard row in one
transaction, each under KeyAbsent. If either key is taken the backend cancels
the transaction and Classify reports a ConditionFailedError, which the
repository surfaces as a Conflict. Throttling, transport and server faults
become UnavailableError so callers can tell a duplicate from an outage.
*/
package guard
