// Package renderqueue collects visible renderables of a render queue index
// range and emits them as sorted, batched draw commands.
//
// Every renderable is queued with a 64-bit sort key. Opaque queues sort by
// the renderable state key (material bucket, then vertex array, then an
// instanced flag) so that consecutive draws share as much GPU state as
// possible. Transparent queues put the inverted camera distance in the high
// half of the key so draws go back to front. Sorting is stable: renderables
// with equal keys keep their submission order.
package renderqueue
