// Package engine runs the constraint lifecycle for one session.
//
// A Session owns the ordered record store, the compiled model built from
// it and a journal of every edit. It is the only writer of all three.
//
// Adding a record:
//  1. the record is validated against the registry
//  2. conflicts with stored records are detected
//  3. protected defaults among the conflicts need a Confirmer's approval;
//     one refusal aborts the add and nothing changes
//  4. approved conflicts are removed and the record is appended
//  5. the model is rebuilt when anything was removed, otherwise the record
//     is posted onto the current model
//
// Solutions are enumerated on the current model. Item filters are posted on
// a clone, so a filtered query never changes later unfiltered results.
//
// The model is replaced wholesale on rebuild; callers holding an old
// ModelState keep a consistent (if stale) model and variable table.
package engine
