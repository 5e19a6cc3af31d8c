// Package erc7412 executes contract calls that depend on off-chain oracle
// data, following ERC-7412.
//
// A call that needs fresh prices reverts with OracleDataRequired(address,
// bytes). The Engine decodes that revert, fetches the requested price
// updates, prepends a fulfillOracleQuery call to the batch and retries
// through the TrustedMulticallForwarder until the logical calls succeed or
// fail for another reason.
//
// Batch layout after k fulfillments, with P caller prefix calls and L
// logical calls:
//
//	[prefix_1..prefix_P, fulfill_1..fulfill_k, logical_1..logical_L]
//
// Only the trailing L results are ever decoded.
package erc7412
