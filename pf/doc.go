// Package pf computes equilibrium partition functions of RNA secondary
// structure ensembles using the McCaskill dynamic program.
//
// A FoldCompound owns one sequence (or one multiple alignment), the model
// parameters, the constraint state, and the DP matrices of a single fold.
// Calling Pf fills the linear matrices q, qb, qm and qm1, optionally runs the
// circular post-processing pass, and reports the ensemble free energy in
// kcal/mol. PairProbs derives the base-pair probability matrix from the
// filled matrices.
//
// Energy model terms, hard and soft constraints, ligand (unstructured
// domain) weights and G-quadruplex contributions are pluggable callbacks on
// the compound; every absent callback is neutral. There is no process-wide
// fold state: two goroutines may fill two different compounds concurrently.
package pf
