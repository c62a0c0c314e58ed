// Package record defines the evidentiary record family.
//
// Every record kind embeds a shared Header and is one variant of the sealed
// Record interface. Code that needs kind-specific behaviour switches on the
// concrete variant; the switches in this module are exhaustive over Kinds().
//
// Header fields other than ModifiedAt and Custody are write-once: they are
// populated by Factory.Create at capture time and nothing in this module
// mutates them afterwards. The custody chain only grows, through the custody
// ledger.
package record
