// Package schedule decides when a learner should next see an item and which
// presentation of it to show.
//
// Compute derives a review time from the learner's history with the item and
// their forgetting rate. IsDue tests a variant's stored schedule against the
// clock. ChooseVariant picks a variant the learner has not seen, or the one
// they saw longest ago.
package schedule
