// Package queue provides the FIFO work queue shared by the feeder and the
// fetch workers.
//
// The queue is unbounded: the producer is paced on a fixed schedule, so
// Put never blocks. Consumers take one item at a time and acknowledge it
// with Done once they are finished with it, including when they put a
// retry back on the queue. Join waits for the point where nothing is
// pending and nothing is in flight.
//
// # Usage
//
//	q := queue.New[jobs.Job]()
//
//	go func() {
//	    for {
//	        job, err := q.Take(ctx)
//	        if err != nil {
//	            return
//	        }
//	        process(job)
//	        q.Done()
//	    }
//	}()
//
//	q.Put(job)
//	if err := q.Join(ctx); err != nil {
//	    return err
//	}
package queue
