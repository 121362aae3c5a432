package swap

// ContractRecord exposes the contract tuple layout to tests that encode history.
type ContractRecord = contractRecord
