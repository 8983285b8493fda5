// Package vmhost runs generated modules under wazero against a simulated
// contract host.
//
// The host exports the vm_hooks functions the generated code imports:
//
//	read_args(dest)                 copy call data into guest memory
//	write_result(ptr, len)          record the return data
//	native_keccak256(ptr, len, out) legacy Keccak-256
//	storage_load_bytes32(key, dest) read a slot (cached writes first)
//	storage_cache_bytes32(key, val) stage a slot write
//	storage_flush_cache(clear)      commit staged writes
//	tx_origin(dest)                 20-byte transaction origin
//	emit_log(ptr, len, topics)      record a log; topics precede the data
//
// Out-of-range guest pointers abort the call with an error.
package vmhost
